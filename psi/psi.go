//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package psi implements the two-party private set intersection
// exchange on top of an injected OT-based PSI backend.
package psi

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/markkurossi/mpsi/ot"
	"github.com/markkurossi/mpsi/task"
	"github.com/zeebo/blake3"
)

const elementCtx = "github.com/markkurossi/mpsi/psi element"

// Mode defines how the intersection positions select the result.
type Mode int32

// Selection modes.
const (
	Intersection Mode = 0
	Difference   Mode = 1
)

func (m Mode) String() string {
	switch m {
	case Intersection:
		return "INTERSECTION"
	case Difference:
		return "DIFFERENCE"
	default:
		return fmt.Sprintf("{Mode %d}", int32(m))
	}
}

// Backend defines the OT-based PSI primitive. The client runs the
// receiver side and learns the positions of its inputs that are in
// the server's set. The server runs the sender side and learns
// nothing.
type Backend interface {
	// Init runs the protocol setup over io. The senderSize is the
	// server's set size and receiverSize the client's.
	Init(role task.Role, io ot.IO, senderSize, receiverSize,
		statSecParam int) error

	// SendInput runs the exchange for the local inputs.
	SendInput(inputs []ot.Label) error

	// Intersection returns the receiver's intersection positions.
	Intersection() []int
}

// HashElement maps the element to a 128-bit block with a
// domain-separated random oracle.
func HashElement(element []byte) ot.Label {
	var data ot.LabelData
	blake3.DeriveKey(elementCtx, element, data[:])

	var label ot.Label
	label.SetData(&data)
	return label
}

// HashElements hashes all elements with HashElement.
func HashElements(elements [][]byte) []ot.Label {
	result := make([]ot.Label, len(elements))
	for idx, element := range elements {
		result[idx] = HashElement(element)
	}
	return result
}

// Select selects the result elements for the intersection
// positions. The Intersection mode returns the elements at the
// positions and the Difference mode the elements not at the
// positions. Both keep the original element order and ignore
// duplicate and out-of-range positions.
func Select(elements [][]byte, positions []int, mode Mode) [][]byte {
	set := bitset.New(uint(len(elements)))
	for _, pos := range positions {
		if pos >= 0 && pos < len(elements) {
			set.Set(uint(pos))
		}
	}
	result := make([][]byte, 0, len(elements))
	for idx, element := range elements {
		if set.Test(uint(idx)) == (mode == Intersection) {
			result = append(result, element)
		}
	}
	return result
}
