//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package executor implements the task executors that run the party
// side of PSI and MPC statistics tasks.
package executor

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mpsi/codec"
	"github.com/markkurossi/mpsi/coord"
	"github.com/markkurossi/mpsi/dataset"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/kkrt"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/p2p"
	"github.com/markkurossi/mpsi/psi"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

// Message tags of the PSI task.
const (
	TagPSI    = "psi_kkrt"
	TagResult = "psi_result"
)

// PSITask executes the local party's side of a two-party PSI task.
type PSITask struct {
	config   *env.Config
	task     *task.Task
	channel  link.Channel
	datasets dataset.Driver
	sink     dataset.Sink
	log      logr.Logger

	// Backend specifies the PSI backend. If nil, the KKRT backend is
	// used.
	Backend psi.Backend

	// Timing holds the phase timing samples of the last execution.
	Timing *Timing

	// Stats holds the PSI exchange I/O statistics of the last
	// execution.
	Stats p2p.IOStats

	// Result holds the client's selected elements, or the result the
	// server received from the client.
	Result [][]byte
}

// NewPSITask creates a new PSI task executor. The task is cloned and
// the executor installs the negotiated sub-task ID into its copy.
func NewPSITask(config *env.Config, t *task.Task, ch link.Channel,
	datasets dataset.Driver, sink dataset.Sink) *PSITask {

	return &PSITask{
		config:   config,
		task:     t.Clone(),
		channel:  ch,
		datasets: datasets,
		sink:     sink,
		log:      config.GetLogger().WithName("executor"),
		Stats:    p2p.NewIOStats(),
	}
}

// Task returns the executor's task descriptor.
func (p *PSITask) Task() *task.Task {
	return p.task
}

// Execute runs the PSI task. It returns the task result code and
// the error that caused the failure.
func (p *PSITask) Execute(ctx context.Context) (retcode.Code, error) {
	p.Timing = NewTiming()
	p.Result = nil

	err := p.execute(ctx)
	code := retcode.CodeOf(err)
	if err != nil {
		p.log.Error(err, "PSI task failed", "party", p.task.PartyName,
			"code", code.String())
		return code, err
	}
	p.log.Info("PSI task completed", "party", p.task.PartyName,
		"elapsed", p.Timing.Total().String())
	return code, nil
}

func (p *PSITask) sample(label string, cols ...string) {
	s := p.Timing.Sample(label, cols)
	p.log.V(1).Info("phase completed", "party", p.task.PartyName,
		"phase", label, "elapsed", s.Duration().String())
}

func (p *PSITask) execute(ctx context.Context) error {
	binding, err := task.ResolvePeer(p.task)
	if err != nil {
		return err
	}
	params, err := psi.LoadParams(p.task.Params, binding.Role)
	if err != nil {
		return err
	}
	p.log.V(5).Info("parameters", "role", binding.Role.String(),
		"mode", params.Mode.String(),
		"columns", fmt.Sprintf("%v", params.Columns),
		"output", params.OutputPath, "sync", params.SyncResult)
	p.sample("Params")

	self, err := p.task.Self()
	if err != nil {
		return err
	}
	session := link.NewSession(p.channel, p.task.Identity, self)

	if _, ok := p.task.Auxiliary(task.ProxyNode); ok {
		nego := coord.NewNegotiator(p.config, p.task, session)
		if _, err := nego.Negotiate(ctx); err != nil {
			return err
		}
		session = session.WithID(p.task.Identity)
		p.sample("Negotiate")
	}

	if _, ok := p.task.Auxiliary(task.AuxComputeNode); ok {
		if err := coord.AddAuxiliaryComputeServer(p.task); err != nil {
			return retcode.Wrap(retcode.ErrConfig, err)
		}
	}
	recruiter := coord.NewRecruiter(p.config, p.task, session)
	if err := recruiter.Invite(ctx); err != nil {
		return err
	}
	if _, ok := coord.NewInvitation(p.task); ok {
		defer recruiter.Stop(ctx)
		p.sample("Recruit")
	}

	elements, names, err := p.datasets.Load(ctx, binding.DatasetID,
		params.Columns)
	if err != nil {
		return err
	}
	p.sample("Load", fmt.Sprintf("%d", len(elements)))

	positions, err := p.exchange(ctx, session, binding, elements)
	if err != nil {
		return err
	}
	p.sample("PSI", FileSize(p.Stats.Sum()).String())

	if binding.Role == task.RoleClient {
		return p.saveClient(ctx, session, binding, params, elements,
			positions, names)
	}
	return p.saveServer(ctx, session, binding, params, names)
}

func (p *PSITask) exchange(ctx context.Context, session *link.Session,
	binding *task.PeerBinding, elements [][]byte) ([]int, error) {

	backend := p.Backend
	if backend == nil {
		backend = kkrt.New(p.config)
	}

	stream := link.NewStream(ctx, session, TagPSI, binding.Peer)
	conn := p2p.NewConn(stream)
	p.Stats = conn.Stats

	engine := psi.NewEngine(p.config, binding.Role, backend)
	positions, err := engine.Run(conn, elements)

	// Closing the connection closes the stream.
	closeErr := conn.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, retcode.Wrap(retcode.ErrNetwork, closeErr)
	}
	p.log.Info("PSI exchange completed", "party", p.task.PartyName,
		"role", binding.Role.String(), "elements", len(elements),
		"peer", engine.PeerSize)

	return positions, nil
}

func (p *PSITask) saveClient(ctx context.Context, session *link.Session,
	binding *task.PeerBinding, params *psi.Params, elements [][]byte,
	positions []int, names []string) error {

	p.Result = psi.Select(elements, positions, params.Mode)
	if err := p.sink.Save(p.Result, params.OutputPath, names); err != nil {
		return retcode.Wrap(retcode.ErrConfig,
			fmt.Errorf("save result to %s: %w", params.OutputPath, err))
	}
	p.log.Info("result saved", "path", params.OutputPath,
		"rows", len(p.Result), "mode", params.Mode.String())
	p.sample("Save", fmt.Sprintf("%d", len(p.Result)))

	if !params.SyncResult {
		return nil
	}
	data := codec.EncodeResult(p.Result)
	if err := session.Send(ctx, TagResult, binding.Peer, data); err != nil {
		return err
	}
	p.sample("Sync", FileSize(len(data)).String())
	return nil
}

func (p *PSITask) saveServer(ctx context.Context, session *link.Session,
	binding *task.PeerBinding, params *psi.Params, names []string) error {

	if !params.SyncResult {
		return nil
	}
	data, err := session.Recv(ctx, TagResult, binding.Peer)
	if err != nil {
		return err
	}
	result, err := codec.DecodeResult(data)
	if err != nil {
		return err
	}
	p.Result = result
	err = p.sink.Save(result, params.ServerOutputPath, names)
	if err != nil {
		return retcode.Wrap(retcode.ErrConfig,
			fmt.Errorf("save result to %s: %w", params.ServerOutputPath, err))
	}
	p.log.Info("synced result saved", "path", params.ServerOutputPath,
		"rows", len(result))
	p.sample("Sync", FileSize(len(data)).String())
	return nil
}
