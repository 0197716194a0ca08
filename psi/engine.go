//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/ot"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

// State defines the exchange states.
type State int

// Exchange states.
const (
	StateInit State = iota
	StateSizeExchange
	StateOTSetup
	StateInputExchange
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:          "Init",
	StateSizeExchange:  "SizeExchange",
	StateOTSetup:       "OTSetup",
	StateInputExchange: "InputExchange",
	StateDone:          "Done",
	StateFailed:        "Failed",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if ok {
		return name
	}
	return fmt.Sprintf("{State %d}", int(s))
}

const barrier byte = 0x5a

// IO defines the connection the engine runs on.
type IO interface {
	ot.IO

	// SendByte sends a byte value.
	SendByte(val byte) error

	// SendUint64 sends an uint64 value.
	SendUint64(val uint64) error

	// ReceiveByte receives a byte value.
	ReceiveByte() (byte, error)

	// ReceiveUint64 receives an uint64 value.
	ReceiveUint64() (uint64, error)
}

// Engine implements the PSI exchange for one party.
type Engine struct {
	config  *env.Config
	role    task.Role
	backend Backend
	state   State
	log     logr.Logger

	// PeerSize is the peer's set size after the size exchange.
	PeerSize int
}

// NewEngine creates a new engine for the role and backend.
func NewEngine(config *env.Config, role task.Role, backend Backend) *Engine {
	return &Engine{
		config:  config,
		role:    role,
		backend: backend,
		state:   StateInit,
		log:     config.GetLogger().WithName("psi"),
	}
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return e.state
}

// Run runs the exchange over io for the local elements. The client
// gets the deduplicated ascending positions of its elements that are
// in the server's set. The server gets nil positions. An engine can
// run only once.
func (e *Engine) Run(io IO, elements [][]byte) ([]int, error) {
	if e.state != StateInit {
		return nil, retcode.Protocolf("engine in state %v", e.state)
	}
	positions, err := e.run(io, elements)
	if err != nil {
		failed := e.state
		e.state = StateFailed
		return nil, retcode.Wrap(retcode.ErrProtocol,
			fmt.Errorf("%v: %w", failed, err))
	}
	e.state = StateDone
	return positions, nil
}

func (e *Engine) run(io IO, elements [][]byte) ([]int, error) {
	e.state = StateSizeExchange
	if err := io.SendUint64(uint64(len(elements))); err != nil {
		return nil, err
	}
	if err := io.Flush(); err != nil {
		return nil, err
	}
	peerSize, err := io.ReceiveUint64()
	if err != nil {
		return nil, err
	}
	if peerSize > uint64(int(^uint32(0)>>1)) {
		return nil, fmt.Errorf("invalid peer set size %d", peerSize)
	}
	e.PeerSize = int(peerSize)
	e.log.V(1).Info("size exchange", "role", e.role.String(),
		"local", len(elements), "peer", e.PeerSize)

	e.state = StateOTSetup
	if err := e.barrier(io); err != nil {
		return nil, err
	}
	senderSize, receiverSize := len(elements), e.PeerSize
	if e.role == task.RoleClient {
		senderSize, receiverSize = e.PeerSize, len(elements)
	}
	err = e.backend.Init(e.role, io, senderSize, receiverSize,
		e.config.GetStatSecParam())
	if err != nil {
		return nil, err
	}

	e.state = StateInputExchange
	if err := e.backend.SendInput(HashElements(elements)); err != nil {
		return nil, err
	}
	if e.role != task.RoleClient {
		return nil, nil
	}

	positions := slices.Clone(e.backend.Intersection())
	slices.Sort(positions)
	positions = slices.Compact(positions)
	for _, pos := range positions {
		if pos < 0 || pos >= len(elements) {
			return nil, fmt.Errorf("intersection position %d out of range [0,%d)",
				pos, len(elements))
		}
	}
	e.log.V(1).Info("intersection", "count", len(positions))

	return positions, nil
}

// barrier synchronizes the peers before the OT setup. The server
// sends the barrier byte and the client echoes it back.
func (e *Engine) barrier(io IO) error {
	if e.role == task.RoleServer {
		if err := io.SendByte(barrier); err != nil {
			return err
		}
		if err := io.Flush(); err != nil {
			return err
		}
	}
	b, err := io.ReceiveByte()
	if err != nil {
		return err
	}
	if b != barrier {
		return fmt.Errorf("unexpected barrier value 0x%02x", b)
	}
	if e.role == task.RoleClient {
		if err := io.SendByte(b); err != nil {
			return err
		}
		return io.Flush()
	}
	return nil
}
