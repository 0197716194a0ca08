//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package auxnode implements the auxiliary compute node that the task
// coordinator recruits into MPC tasks.
package auxnode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mpsi/codec"
	"github.com/markkurossi/mpsi/coord"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
	"gopkg.in/yaml.v3"
)

// State defines the auxiliary task states.
type State string

// Auxiliary task states.
const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Status describes an auxiliary task.
type Status struct {
	Identity  task.Identity `json:"identity"`
	Code      string        `json:"code,omitempty"`
	Algorithm string        `json:"algorithm,omitempty"`
	Shape     []int64       `json:"shape,omitempty"`
	State     State         `json:"state"`
	Error     string        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Stopped   time.Time     `json:"stopped,omitempty"`
}

// Server implements the auxiliary compute node.
type Server struct {
	config  *env.Config
	channel link.Channel
	self    task.Node
	log     logr.Logger

	m     sync.Mutex
	tasks map[string]*Status
}

// NewServer creates a new auxiliary compute node server.
func NewServer(config *env.Config, ch link.Channel, address string) *Server {
	return &Server{
		config:  config,
		channel: ch,
		self: task.Node{
			Name:    task.AuxComputeNode,
			Address: address,
		},
		log:   config.GetLogger().WithName("auxnode"),
		tasks: make(map[string]*Status),
	}
}

// Serve serves dispatched tasks until the context is canceled or
// the channel fails.
func (s *Server) Serve(ctx context.Context) error {
	for {
		status, err := s.ServeTask(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, retcode.ErrNetwork) {
				return err
			}
			s.log.Error(err, "task failed")
			continue
		}
		s.log.Info("task stopped", "identity", status.Identity.String(),
			"elapsed", status.Stopped.Sub(status.Started).String())
	}
}

// ServeTask serves one dispatched task. It receives the actor task,
// collects its input shape, and returns when the coordinator stops
// the task.
func (s *Server) ServeTask(ctx context.Context) (*Status, error) {
	control := link.NewSession(s.channel, task.Identity{}, s.self)
	data, err := control.Recv(ctx, coord.TagExecuteTask, task.Node{})
	if err != nil {
		return nil, err
	}
	t, err := task.Parse(data)
	if err != nil {
		return nil, retcode.Formatf("invalid task: %v", err)
	}
	if t.PartyName != task.AuxComputeNode || t.Type != task.ACTORTask {
		return nil, retcode.Protocolf("unexpected task %s/%s", t.PartyName,
			t.Type)
	}
	status := s.start(t)
	s.log.Info("task dispatched", "identity", t.Identity.String(),
		"code", t.Code, "algorithm", status.Algorithm)

	err = s.run(ctx, t, status)
	s.finish(status, err)
	if err != nil {
		return nil, err
	}
	return s.status(status), nil
}

func (s *Server) run(ctx context.Context, t *task.Task, status *Status) error {
	session := link.NewSession(s.channel, t.Identity, s.self)
	coordinator, ok := coordinatorNode(t)
	if !ok {
		return retcode.Configf("task %v has no coordinator", t.Identity)
	}

	// The shape is optional.
	shapeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		data, err := session.Recv(shapeCtx, coord.TagShape, coordinator)
		if err != nil {
			return
		}
		shape, err := codec.DecodeShape(data)
		if err != nil {
			s.log.Error(err, "invalid shape", "identity", t.Identity.String())
			return
		}
		s.m.Lock()
		status.Shape = shape
		s.m.Unlock()
		s.log.V(1).Info("shape received", "identity", t.Identity.String(),
			"shape", fmt.Sprintf("%v", shape))
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	data, err := session.Recv(ctx, coord.TagStop, coordinator)
	if err != nil {
		return err
	}
	var id task.Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return retcode.Wrap(retcode.ErrFormat, err)
	}
	if id != t.Identity {
		return retcode.Protocolf("stop identity %v, expected %v", id,
			t.Identity)
	}
	return nil
}

func coordinatorNode(t *task.Task) (task.Node, bool) {
	for name, node := range t.PartyAccessInfo {
		if node.PartyID == 0 && name != task.AuxComputeNode {
			node.Name = name
			return node, true
		}
	}
	return task.Node{}, false
}

func (s *Server) start(t *task.Task) *Status {
	status := &Status{
		Identity: t.Identity,
		Code:     t.Code,
		State:    StateRunning,
		Started:  time.Now(),
	}
	if len(t.Algorithm.StatisticsOp) > 0 {
		status.Algorithm = t.Algorithm.StatisticsOp
	} else {
		status.Algorithm = t.Algorithm.ArithmeticOp
	}
	s.m.Lock()
	s.tasks[t.Identity.String()] = status
	s.m.Unlock()
	return status
}

func (s *Server) finish(status *Status, err error) {
	s.m.Lock()
	defer s.m.Unlock()
	status.Stopped = time.Now()
	if err != nil {
		status.State = StateFailed
		status.Error = err.Error()
	} else {
		status.State = StateStopped
	}
}

func (s *Server) status(status *Status) *Status {
	s.m.Lock()
	defer s.m.Unlock()
	c := *status
	c.Shape = append([]int64(nil), status.Shape...)
	return &c
}

// Tasks returns the status of all tasks the server has served,
// ordered by their start time.
func (s *Server) Tasks() []*Status {
	s.m.Lock()
	var result []*Status
	for _, status := range s.tasks {
		result = append(result, status)
	}
	s.m.Unlock()

	for i, status := range result {
		result[i] = s.status(status)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Started.Before(result[j].Started)
	})
	return result
}

// Task returns the status of the task by its identity string.
func (s *Server) Task(id string) (*Status, bool) {
	s.m.Lock()
	status, ok := s.tasks[id]
	s.m.Unlock()
	if !ok {
		return nil, false
	}
	return s.status(status), true
}
