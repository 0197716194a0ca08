//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package auxnode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/markkurossi/mpsi/coord"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
	"golang.org/x/sync/errgroup"
)

var config = &env.Config{}

func newTask(name string) *task.Task {
	return &task.Task{
		Identity: task.Identity{
			JobID:     "job-1",
			TaskID:    "task-1",
			SubTaskID: "sub-1",
		},
		PartyName: name,
		Code:      "mpc_statistics",
		PartyAccessInfo: map[string]task.Node{
			"P0": {Name: "P0", PartyID: 0, Address: "P0:1"},
			"P1": {Name: "P1", PartyID: 1, Address: "P1:1"},
		},
		AuxiliaryServer: map[string]task.Node{
			task.AuxComputeNode: {
				Name:    task.AuxComputeNode,
				Address: "aux:1",
			},
			task.ProxyNode: {
				Name:    task.ProxyNode,
				Address: "P0:1",
			},
		},
		Algorithm: task.Algorithm{
			FunctionType: "STATISTICS",
			StatisticsOp: "MAX",
		},
	}
}

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func coordinator(hub *link.Hub, t *task.Task) *coord.Recruiter {
	self, err := t.Self()
	if err != nil {
		panic(err)
	}
	session := link.NewSession(hub.Endpoint(self.Address), t.Identity, self)
	return coord.NewRecruiter(config, t, session)
}

func TestServeTask(t *testing.T) {
	ctx := timeout(t)
	hub := link.NewHub()
	hub.Endpoint("P1:1")

	server := NewServer(config, hub.Endpoint("aux:1"), "aux:1")
	p0 := newTask("P0")
	if err := coord.AddAuxiliaryComputeServer(p0); err != nil {
		t.Fatal(err)
	}
	recruiter := coordinator(hub, p0)

	var status *Status
	var g errgroup.Group
	g.Go(func() error {
		var err error
		status, err = server.ServeTask(ctx)
		return err
	})
	g.Go(func() error {
		if err := recruiter.Invite(ctx); err != nil {
			return err
		}
		if err := recruiter.BroadcastShape(ctx, []int64{1, 3}); err != nil {
			return err
		}
		recruiter.Stop(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("ServeTask failed: %v", err)
	}
	if status.Identity != p0.Identity {
		t.Errorf("identity %v, expected %v", status.Identity, p0.Identity)
	}
	if status.State != StateStopped {
		t.Errorf("state %v, expected %v", status.State, StateStopped)
	}
	if len(status.Shape) != 2 || status.Shape[0] != 1 || status.Shape[1] != 3 {
		t.Errorf("unexpected shape %v", status.Shape)
	}
	if status.Algorithm != "MAX" {
		t.Errorf("unexpected algorithm %v", status.Algorithm)
	}
	tasks := server.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, expected 1", len(tasks))
	}
	if _, ok := server.Task(p0.Identity.String()); !ok {
		t.Errorf("task %v not found", p0.Identity)
	}
}

func TestServeTaskNoShape(t *testing.T) {
	ctx := context.Background()
	hub := link.NewHub()
	hub.Endpoint("P1:1")

	server := NewServer(config, hub.Endpoint("aux:1"), "aux:1")
	p0 := newTask("P0")
	recruiter := coordinator(hub, p0)

	type result struct {
		status *Status
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := server.ServeTask(ctx)
		done <- result{status, err}
	}()
	if err := recruiter.Invite(ctx); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	recruiter.Stop(ctx)

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("ServeTask failed: %v", r.err)
		}
		if r.status.State != StateStopped {
			t.Errorf("state %v, expected %v", r.status.State, StateStopped)
		}
		if len(r.status.Shape) != 0 {
			t.Errorf("unexpected shape %v", r.status.Shape)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("ServeTask did not return after stop")
	}
}

func TestServeTaskInvalid(t *testing.T) {
	ctx := timeout(t)
	hub := link.NewHub()
	server := NewServer(config, hub.Endpoint("aux:1"), "aux:1")

	p0 := newTask("P0")
	data, err := p0.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	self, _ := p0.Self()
	control := link.NewSession(hub.Endpoint("P0:1"), task.Identity{}, self)
	aux, _ := p0.Auxiliary(task.AuxComputeNode)

	err = control.Send(ctx, coord.TagExecuteTask, aux, data)
	if err != nil {
		t.Fatal(err)
	}
	_, err = server.ServeTask(ctx)
	if !errors.Is(err, retcode.ErrProtocol) {
		t.Errorf("non-actor task: expected ErrProtocol, got %v", err)
	}

	err = control.Send(ctx, coord.TagExecuteTask, aux, []byte("{["))
	if err != nil {
		t.Fatal(err)
	}
	_, err = server.ServeTask(ctx)
	if !errors.Is(err, retcode.ErrFormat) {
		t.Errorf("invalid task: expected ErrFormat, got %v", err)
	}
}

func TestServeStopMismatch(t *testing.T) {
	ctx := timeout(t)
	hub := link.NewHub()
	server := NewServer(config, hub.Endpoint("aux:1"), "aux:1")

	p0 := newTask("P0")
	data, err := coord.DispatchTask(p0).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	self, _ := p0.Self()
	aux, _ := p0.Auxiliary(task.AuxComputeNode)
	session := link.NewSession(hub.Endpoint("P0:1"), p0.Identity, self)

	err = session.WithID(task.Identity{}).Send(ctx, coord.TagExecuteTask,
		aux, data)
	if err != nil {
		t.Fatal(err)
	}
	err = session.Send(ctx, coord.TagStop, aux, []byte("job_id: other\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = server.ServeTask(ctx)
	if !errors.Is(err, retcode.ErrProtocol) {
		t.Errorf("stop mismatch: expected ErrProtocol, got %v", err)
	}
	st, ok := server.Task(p0.Identity.String())
	if !ok {
		t.Fatalf("failed task not recorded")
	}
	if st.State != StateFailed || len(st.Error) == 0 {
		t.Errorf("unexpected status %v", st)
	}
}

func TestServeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := link.NewHub()
	server := NewServer(config, hub.Endpoint("aux:1"), "aux:1")

	done := make(chan error)
	go func() {
		done <- server.Serve(ctx)
	}()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve: expected context.Canceled, got %v", err)
	}
}

func TestHandler(t *testing.T) {
	ctx := timeout(t)
	hub := link.NewHub()
	hub.Endpoint("P1:1")

	server := NewServer(config, hub.Endpoint("aux:1"), "aux:1")
	handler := server.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(w, r)
		return w
	}

	w := get("/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: status %v", w.Code)
	}
	var health map[string]string
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["node"] != task.AuxComputeNode {
		t.Errorf("unexpected health %v", health)
	}

	w = get("/tasks")
	if w.Code != http.StatusOK || w.Body.String() != "[]\n" {
		t.Errorf("empty tasks: %v %q", w.Code, w.Body.String())
	}

	p0 := newTask("P0")
	recruiter := coordinator(hub, p0)
	var g errgroup.Group
	g.Go(func() error {
		_, err := server.ServeTask(ctx)
		return err
	})
	g.Go(func() error {
		if err := recruiter.Invite(ctx); err != nil {
			return err
		}
		recruiter.Stop(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	w = get("/tasks")
	var tasks []Status
	if err := json.NewDecoder(w.Body).Decode(&tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].State != StateStopped {
		t.Errorf("unexpected tasks %v", tasks)
	}

	w = get("/tasks/" + url.PathEscape(p0.Identity.String()))
	if w.Code != http.StatusOK {
		t.Errorf("task: status %v", w.Code)
	}
	w = get("/tasks/unknown")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown task: status %v", w.Code)
	}
}
