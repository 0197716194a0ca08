//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"context"
	"errors"
	"testing"

	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/kkrt"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/p2p"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

type result struct {
	positions []int
	err       error
}

func exchange(t *testing.T, client, server Backend, clientSet,
	serverSet [][]byte) ([]int, *Engine, *Engine) {

	t.Helper()

	cConn, sConn := p2p.Pipe()
	defer cConn.Close()
	defer sConn.Close()

	config := &env.Config{}
	ce := NewEngine(config, task.RoleClient, client)
	se := NewEngine(config, task.RoleServer, server)

	done := make(chan result, 1)
	go func() {
		positions, err := se.Run(sConn, serverSet)
		done <- result{positions, err}
	}()

	positions, err := ce.Run(cConn, clientSet)
	if err != nil {
		t.Fatalf("client Run: %v", err)
	}
	sr := <-done
	if sr.err != nil {
		t.Fatalf("server Run: %v", sr.err)
	}
	if sr.positions != nil {
		t.Errorf("server learned positions %v", sr.positions)
	}
	return positions, ce, se
}

func TestEngineKKRT(t *testing.T) {
	config := &env.Config{}
	tests := []struct {
		client       [][]byte
		server       [][]byte
		intersection [][]byte
		difference   [][]byte
	}{
		{
			client:       strs("a", "b", "c"),
			server:       strs("b", "c", "d"),
			intersection: strs("b", "c"),
			difference:   strs("a"),
		},
		{
			client:       strs("c1", "c2", "c3", "c4", "c5"),
			server:       strs("s1", "s2", "s3", "s4", "s5"),
			intersection: strs(),
			difference:   strs("c1", "c2", "c3", "c4", "c5"),
		},
		{
			client:       strs("x", "", "y"),
			server:       strs("", "y"),
			intersection: strs("", "y"),
			difference:   strs("x"),
		},
	}
	for idx, test := range tests {
		positions, ce, se := exchange(t, kkrt.New(config), kkrt.New(config),
			test.client, test.server)

		got := Select(test.client, positions, Intersection)
		if !equal(got, test.intersection) {
			t.Errorf("test %d: intersection %q, expected %q",
				idx, got, test.intersection)
		}
		got = Select(test.client, positions, Difference)
		if !equal(got, test.difference) {
			t.Errorf("test %d: difference %q, expected %q",
				idx, got, test.difference)
		}
		if ce.State() != StateDone || se.State() != StateDone {
			t.Errorf("test %d: states %v/%v", idx, ce.State(), se.State())
		}
		if ce.PeerSize != len(test.server) || se.PeerSize != len(test.client) {
			t.Errorf("test %d: peer sizes %d/%d", idx, ce.PeerSize, se.PeerSize)
		}
	}
}

func TestEngineFake(t *testing.T) {
	client := &FakeBackend{
		Positions: []int{2, 0, 2},
	}
	server := &FakeBackend{
		Positions: []int{1},
	}
	positions, _, _ := exchange(t, client, server, strs("a", "b", "c"),
		strs("q", "r"))

	if len(positions) != 2 || positions[0] != 0 || positions[1] != 2 {
		t.Errorf("unexpected positions %v", positions)
	}
	if client.SenderSize != 2 || client.ReceiverSize != 3 ||
		server.SenderSize != 2 || server.ReceiverSize != 3 {
		t.Errorf("set sizes not symmetric: client %d/%d, server %d/%d",
			client.SenderSize, client.ReceiverSize,
			server.SenderSize, server.ReceiverSize)
	}
	if client.StatSecParam != env.DefaultStatSecParam {
		t.Errorf("unexpected stat sec param %d", client.StatSecParam)
	}
	if len(client.Inputs) != 3 || !client.Inputs[1].Equal(HashElement([]byte("b"))) {
		t.Errorf("inputs are not hashed elements")
	}
}

func TestEngineInvalidPosition(t *testing.T) {
	cConn, sConn := p2p.Pipe()
	defer cConn.Close()
	defer sConn.Close()

	config := &env.Config{}
	ce := NewEngine(config, task.RoleClient, &FakeBackend{
		Positions: []int{5},
	})
	se := NewEngine(config, task.RoleServer, &FakeBackend{})

	done := make(chan error, 1)
	go func() {
		_, err := se.Run(sConn, strs("a"))
		done <- err
	}()
	_, err := ce.Run(cConn, strs("a", "b"))
	if !errors.Is(err, retcode.ErrProtocol) {
		t.Errorf("expected protocol error, got %v", err)
	}
	if ce.State() != StateFailed {
		t.Errorf("got state %v, expected %v", ce.State(), StateFailed)
	}
	if err := <-done; err != nil {
		t.Errorf("server: %v", err)
	}

	_, err = ce.Run(cConn, strs("a"))
	if !errors.Is(err, retcode.ErrProtocol) {
		t.Errorf("rerun: expected protocol error, got %v", err)
	}
}

func TestEngineBackendError(t *testing.T) {
	cConn, sConn := p2p.Pipe()
	defer cConn.Close()
	defer sConn.Close()

	config := &env.Config{}
	failure := errors.New("primitive failure")
	ce := NewEngine(config, task.RoleClient, &FakeBackend{
		InitErr: failure,
	})
	se := NewEngine(config, task.RoleServer, &FakeBackend{})

	done := make(chan error, 1)
	go func() {
		_, err := se.Run(sConn, nil)
		done <- err
	}()
	_, err := ce.Run(cConn, nil)
	if !errors.Is(err, retcode.ErrProtocol) || !errors.Is(err, failure) {
		t.Errorf("expected wrapped protocol error, got %v", err)
	}
	<-done
}

func TestEngineNetworkError(t *testing.T) {
	hub := link.NewHub()
	client := task.Node{
		Name:    task.PartyClient,
		Address: "client:1",
	}
	server := task.Node{
		Name:    task.PartyServer,
		Address: "server:1",
	}
	session := link.NewSession(hub.Endpoint(client.Address), task.Identity{},
		client)
	hub.Endpoint(server.Address)

	stream := link.NewStream(context.Background(), session, "psi", server)
	conn := p2p.NewConn(stream)
	defer conn.Close()

	// The peer never answers and the stream is closed.
	stream.Close()

	e := NewEngine(&env.Config{}, task.RoleClient, &FakeBackend{})
	_, err := e.Run(conn, strs("a"))
	if !errors.Is(err, retcode.ErrNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
	if e.State() != StateFailed {
		t.Errorf("got state %v, expected %v", e.State(), StateFailed)
	}
}
