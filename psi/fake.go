//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"github.com/markkurossi/mpsi/ot"
	"github.com/markkurossi/mpsi/task"
)

var (
	_ Backend = &FakeBackend{}
)

// FakeBackend implements a Backend that returns scripted positions
// without running any cryptography. It records the calls it
// receives.
type FakeBackend struct {
	Positions []int
	InitErr   error
	InputErr  error

	Role         task.Role
	SenderSize   int
	ReceiverSize int
	StatSecParam int
	Inputs       []ot.Label
}

// Init implements Backend.Init.
func (fake *FakeBackend) Init(role task.Role, io ot.IO, senderSize,
	receiverSize, statSecParam int) error {

	fake.Role = role
	fake.SenderSize = senderSize
	fake.ReceiverSize = receiverSize
	fake.StatSecParam = statSecParam
	return fake.InitErr
}

// SendInput implements Backend.SendInput.
func (fake *FakeBackend) SendInput(inputs []ot.Label) error {
	fake.Inputs = inputs
	return fake.InputErr
}

// Intersection implements Backend.Intersection.
func (fake *FakeBackend) Intersection() []int {
	if fake.Role != task.RoleClient {
		return nil
	}
	return fake.Positions
}
