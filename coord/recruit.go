//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package coord

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mpsi/codec"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
	"gopkg.in/yaml.v3"
)

// ErrNoAuxiliary is returned when the task does not declare an
// auxiliary compute node.
var ErrNoAuxiliary = errors.New("no auxiliary compute node")

// Invitation describes the auxiliary compute node and the proxy node
// of a task.
type Invitation struct {
	Aux   task.Node
	Proxy task.Node
}

// NewInvitation returns the task's invitation. The function returns
// false if the task does not declare an auxiliary compute node.
func NewInvitation(t *task.Task) (*Invitation, bool) {
	aux, ok := t.Party(task.AuxComputeNode)
	if !ok {
		aux, ok = t.Auxiliary(task.AuxComputeNode)
		if !ok {
			return nil, false
		}
	}
	proxy, _ := t.Auxiliary(task.ProxyNode)
	return &Invitation{
		Aux:   aux,
		Proxy: proxy,
	}, true
}

// AddAuxiliaryComputeServer adds the auxiliary compute node to the
// task's party access info with the next free party ID. The function
// returns ErrNoAuxiliary if the task does not declare one.
func AddAuxiliaryComputeServer(t *task.Task) error {
	aux, ok := t.AuxiliaryServer[task.AuxComputeNode]
	if !ok {
		return ErrNoAuxiliary
	}
	if _, ok := t.PartyAccessInfo[task.AuxComputeNode]; ok {
		return nil
	}
	if t.PartyAccessInfo == nil {
		t.PartyAccessInfo = make(map[string]task.Node)
	}
	aux.Name = task.AuxComputeNode
	aux.PartyID = len(t.PartyAccessInfo)
	t.PartyAccessInfo[task.AuxComputeNode] = aux

	return nil
}

// Recruiter recruits the auxiliary compute node to the task.
type Recruiter struct {
	config  *env.Config
	task    *task.Task
	session *link.Session
	log     logr.Logger
}

// NewRecruiter creates a new recruiter for the task. The session
// must carry the negotiated task identity.
func NewRecruiter(config *env.Config, t *task.Task,
	session *link.Session) *Recruiter {

	return &Recruiter{
		config:  config,
		task:    t,
		session: session,
		log:     config.GetLogger().WithName("recruit"),
	}
}

// DispatchTask creates the actor task the coordinator dispatches to
// the auxiliary compute node.
func DispatchTask(t *task.Task) *task.Task {
	aux := t.Clone()
	aux.PartyName = task.AuxComputeNode
	aux.Language = task.LangProto
	aux.Type = task.ACTORTask
	return aux
}

// Invite invites the auxiliary compute node to the task. The
// coordinator dispatches the actor task to the auxiliary node and
// then signals all other parties with the sync flag. The other
// parties wait for the sync flag from the proxy node. Invite is a
// no-op if the task does not declare an auxiliary compute node.
func (r *Recruiter) Invite(ctx context.Context) error {
	inv, ok := NewInvitation(r.task)
	if !ok {
		r.log.V(1).Info("no auxiliary compute node")
		return nil
	}
	coordinator, err := r.task.IsCoordinator()
	if err != nil {
		return err
	}
	if !coordinator {
		return r.waitSync(ctx)
	}

	data, err := DispatchTask(r.task).Marshal()
	if err != nil {
		return retcode.Wrap(retcode.ErrConfig, err)
	}
	// The auxiliary node learns the task identity from the dispatched
	// task.
	control := r.session.WithID(task.Identity{})
	err = control.Send(ctx, TagExecuteTask, inv.Aux, data)
	if err != nil {
		return err
	}
	r.log.Info("auxiliary task dispatched", "aux", inv.Aux.String())

	for _, receiver := range r.task.Receivers() {
		err := r.session.Send(ctx, TagSyncFlag, receiver, []byte(SyncFlag))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Recruiter) waitSync(ctx context.Context) error {
	proxy, ok := r.task.Auxiliary(task.ProxyNode)
	if !ok {
		return retcode.Configf("no %s found", task.ProxyNode)
	}
	data, err := r.session.Recv(ctx, TagSyncFlag, proxy)
	if err != nil {
		return err
	}
	if string(data) != SyncFlag {
		return retcode.Protocolf("invalid sync flag %q from %v", data, proxy)
	}
	r.log.V(1).Info("sync flag received", "proxy", proxy.String())
	return nil
}

// BroadcastShape sends the MPC input shape to the auxiliary compute
// node. Only the coordinator sends the shape; for other parties this
// is a no-op.
func (r *Recruiter) BroadcastShape(ctx context.Context, shape []int64) error {
	coordinator, err := r.task.IsCoordinator()
	if err != nil {
		return err
	}
	if !coordinator {
		return nil
	}
	inv, ok := NewInvitation(r.task)
	if !ok {
		return retcode.Wrap(retcode.ErrConfig, ErrNoAuxiliary)
	}
	err = r.session.Send(ctx, TagShape, inv.Aux, codec.EncodeShape(shape))
	if err != nil {
		return err
	}
	r.log.V(1).Info("shape sent", "aux", inv.Aux.String(),
		"shape", fmt.Sprintf("%v", shape))
	return nil
}

// Stop sends the stop signal to the auxiliary compute node. Only the
// coordinator sends the signal. Delivery failures are logged.
func (r *Recruiter) Stop(ctx context.Context) {
	coordinator, err := r.task.IsCoordinator()
	if err != nil || !coordinator {
		return
	}
	inv, ok := NewInvitation(r.task)
	if !ok {
		r.log.Error(ErrNoAuxiliary, "stop failed")
		return
	}
	data, err := yaml.Marshal(r.task.Identity)
	if err == nil {
		err = r.session.Send(ctx, TagStop, inv.Aux, data)
	}
	if err != nil {
		r.log.Error(err, "stop failed", "aux", inv.Aux.String())
		return
	}
	r.log.V(1).Info("stop sent", "aux", inv.Aux.String())
}
