//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/markkurossi/mpsi/auxnode"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
	"golang.org/x/sync/errgroup"
)

func newMPCTask(party string) *task.Task {
	return &task.Task{
		Identity: task.Identity{
			JobID:  "job-2",
			TaskID: "mpc-1",
		},
		PartyName: party,
		PartyAccessInfo: map[string]task.Node{
			"P0": {PartyID: 0, Address: "P0:1"},
			"P1": {PartyID: 1, Address: "P1:1"},
		},
		AuxiliaryServer: map[string]task.Node{
			task.AuxComputeNode: {Address: auxAddr},
			task.ProxyNode:      {Address: "P0:1"},
		},
	}
}

func TestMPCExecutor(t *testing.T) {
	ctx := timeout(t)
	hub := link.NewHub()
	aux := auxnode.NewServer(config, hub.Endpoint(auxAddr), auxAddr)

	var executors []*MPCExecutor
	for _, party := range []string{"P0", "P1"} {
		t0 := newMPCTask(party)
		e, err := NewMPCExecutor(config, t0,
			hub.Endpoint(t0.PartyAccessInfo[party].Address),
			&LocalEvaluator{})
		if err != nil {
			t.Fatalf("NewMPCExecutor failed: %v", err)
		}
		executors = append(executors, e)
	}
	if node := executors[0].Task().PartyAccessInfo[task.AuxComputeNode]; node.PartyID != 2 {
		t.Errorf("aux party ID %d, expected 2", node.PartyID)
	}
	if executors[0].Task().Code != CodeStatistics {
		t.Errorf("task code %q", executors[0].Task().Code)
	}

	inputs := [][]float64{
		{1, 7, 3},
		{4, 2},
	}
	results := make([][]float64, len(executors))

	var g errgroup.Group
	var status *auxnode.Status
	g.Go(func() error {
		var err error
		status, err = aux.ServeTask(ctx)
		return err
	})
	g.Go(func() error {
		var eg errgroup.Group
		for idx, e := range executors {
			eg.Go(func() error {
				var err error
				results[idx], err = e.Max(ctx, inputs[idx])
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		for _, e := range executors {
			e.Close(ctx)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("Max failed: %v", err)
	}
	if results[0][0] != 7 || results[1][0] != 4 {
		t.Errorf("unexpected results %v", results)
	}
	if len(status.Shape) != 2 || status.Shape[1] != 3 {
		t.Errorf("aux shape %v", status.Shape)
	}
	if status.Algorithm != OpMax {
		t.Errorf("aux algorithm %v", status.Algorithm)
	}
	id0 := executors[0].Task().Identity
	id1 := executors[1].Task().Identity
	if id0 != id1 || len(id0.SubTaskID) == 0 {
		t.Errorf("identities %v and %v", id0, id1)
	}
	if status.Identity != id0 {
		t.Errorf("aux identity %v, expected %v", status.Identity, id0)
	}
}

func TestMPCExecutorNoAuxiliary(t *testing.T) {
	t0 := newMPCTask("P0")
	delete(t0.AuxiliaryServer, task.AuxComputeNode)
	_, err := NewMPCExecutor(config, t0, link.NewHub().Endpoint("P0:1"),
		&LocalEvaluator{})
	if !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestAlgorithm(t *testing.T) {
	e, err := NewMPCExecutor(config, newMPCTask("P1"),
		link.NewHub().Endpoint("P1:1"), &LocalEvaluator{})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetStatisticsOperation("MEDIAN"); !errors.Is(err,
		retcode.ErrConfig) {
		t.Errorf("MEDIAN: expected ErrConfig, got %v", err)
	}
	if err := e.SetArithmeticOperation("a+b"); err != nil {
		t.Fatal(err)
	}
	alg := e.Task().Algorithm
	if alg.FunctionType != FunctionArithmetic || alg.ArithmeticOp != "a+b" {
		t.Errorf("unexpected algorithm %v", alg)
	}
	if err := e.SetArithmeticOperation(""); err == nil {
		t.Errorf("empty arithmetic operation accepted")
	}

	// Close without an operation is a no-op.
	e.Close(context.Background())
}

func TestLocalEvaluator(t *testing.T) {
	input := []float64{4, -2, 10, 8}
	tests := []struct {
		op       string
		expected float64
	}{
		{OpMax, 10},
		{OpMin, -2},
		{OpSum, 20},
		{OpAvg, 5},
	}
	var l LocalEvaluator
	for _, test := range tests {
		t0 := &task.Task{
			Algorithm: task.Algorithm{
				FunctionType: FunctionStatistics,
				StatisticsOp: test.op,
			},
		}
		result, err := l.Evaluate(context.Background(), t0, input, nil)
		if err != nil {
			t.Fatalf("%s: %v", test.op, err)
		}
		if len(result) != 1 || result[0] != test.expected {
			t.Errorf("%s: got %v, expected %v", test.op, result,
				test.expected)
		}
	}
	_, err := l.Evaluate(context.Background(), &task.Task{
		Algorithm: task.Algorithm{
			FunctionType: FunctionStatistics,
			StatisticsOp: OpMax,
		},
	}, nil, nil)
	if !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("empty input: expected ErrConfig, got %v", err)
	}
	_, err = l.Evaluate(context.Background(), &task.Task{}, input, nil)
	if !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("no function: expected ErrConfig, got %v", err)
	}
}
