//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package coord implements the task coordination protocols: the
// sub-task identity negotiation and the auxiliary compute party
// recruitment.
package coord

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

// Message tags.
const (
	TagSubtaskID   = "subtask_id"
	TagSyncFlag    = "SyncFlag"
	TagExecuteTask = "execute_task"
	TagShape       = "mpc_shape"
	TagStop        = "stop_task"
)

// SyncFlag is the marker the coordinator sends after dispatching the
// auxiliary task.
const SyncFlag = "SyncFlag"

// Negotiator negotiates a common sub-task ID for all task
// parties. Only the coordinator mints the ID.
type Negotiator struct {
	config  *env.Config
	task    *task.Task
	session *link.Session
	log     logr.Logger
}

// NewNegotiator creates a new negotiator for the task.
func NewNegotiator(config *env.Config, t *task.Task,
	session *link.Session) *Negotiator {

	return &Negotiator{
		config:  config,
		task:    t,
		session: session,
		log:     config.GetLogger().WithName("negotiate"),
	}
}

// GenerateSubtaskID creates a new random sub-task ID.
func (n *Negotiator) GenerateSubtaskID() (string, error) {
	id, err := uuid.NewRandomFromReader(n.config.GetRandom())
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Broadcast sends the sub-task ID to all task parties except the
// coordinator and the auxiliary compute node.
func (n *Negotiator) Broadcast(ctx context.Context, id string) error {
	for _, receiver := range n.task.Receivers() {
		err := n.session.Send(ctx, TagSubtaskID, receiver, []byte(id))
		if err != nil {
			return err
		}
		n.log.V(1).Info("sent sub-task ID", "party", receiver.String())
	}
	return nil
}

// Receive receives the sub-task ID through the proxy node.
func (n *Negotiator) Receive(ctx context.Context) (string, error) {
	proxy, ok := n.task.Auxiliary(task.ProxyNode)
	if !ok {
		return "", retcode.Configf("no %s found", task.ProxyNode)
	}
	data, err := n.session.Recv(ctx, TagSubtaskID, proxy)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", retcode.Protocolf("empty sub-task ID from %v", proxy)
	}
	return string(data), nil
}

// Negotiate runs the negotiation for the local party. The
// coordinator generates and broadcasts the ID, the other parties
// receive it. The negotiated ID is set to the task identity.
func (n *Negotiator) Negotiate(ctx context.Context) (string, error) {
	coordinator, err := n.task.IsCoordinator()
	if err != nil {
		return "", err
	}
	var id string
	if coordinator {
		id, err = n.GenerateSubtaskID()
		if err != nil {
			return "", retcode.Wrap(retcode.ErrConfig, err)
		}
		if err := n.Broadcast(ctx, id); err != nil {
			return "", err
		}
	} else {
		id, err = n.Receive(ctx)
		if err != nil {
			return "", err
		}
	}
	n.task.Identity.SubTaskID = id
	n.log.Info("sub-task negotiated", "party", n.task.PartyName,
		"coordinator", coordinator, "subtask", id)

	return id, nil
}
