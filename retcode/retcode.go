//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package retcode defines the error taxonomy of the PSI engine and
// the task-level result codes the errors translate into.
package retcode

import (
	"errors"
	"fmt"
)

// Error kinds. All of them are fatal for the current task execution.
var (
	// ErrConfig reports malformed or missing task descriptor fields.
	ErrConfig = errors.New("config error")

	// ErrNetwork reports channel send, receive, or close failures.
	ErrNetwork = errors.New("network error")

	// ErrProtocol reports unexpected peer values, desynchronized
	// barriers, and cryptographic primitive failures.
	ErrProtocol = errors.New("protocol error")

	// ErrFormat reports malformed wire buffers.
	ErrFormat = errors.New("format error")
)

// Configf creates a new ErrConfig error.
func Configf(format string, a ...interface{}) error {
	return newf(ErrConfig, format, a...)
}

// Networkf creates a new ErrNetwork error.
func Networkf(format string, a ...interface{}) error {
	return newf(ErrNetwork, format, a...)
}

// Protocolf creates a new ErrProtocol error.
func Protocolf(format string, a ...interface{}) error {
	return newf(ErrProtocol, format, a...)
}

// Formatf creates a new ErrFormat error.
func Formatf(format string, a ...interface{}) error {
	return newf(ErrFormat, format, a...)
}

func newf(kind error, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, a...))
}

// Wrap wraps err with the error kind. If err already carries one of
// the error kinds, it is returned as-is so the first classification
// wins.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind returns the error kind of err or nil if err is not classified.
func Kind(err error) error {
	for _, kind := range []error{ErrConfig, ErrNetwork, ErrProtocol, ErrFormat} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code defines task-level result codes.
type Code int

// Task result codes.
const (
	Success Code = iota
	Failure
	ConfigFailure
	NetworkFailure
	ProtocolFailure
	FormatFailure
)

var codeNames = map[Code]string{
	Success:         "SUCCESS",
	Failure:         "FAIL",
	ConfigFailure:   "CONFIG_FAIL",
	NetworkFailure:  "NETWORK_FAIL",
	ProtocolFailure: "PROTOCOL_FAIL",
	FormatFailure:   "FORMAT_FAIL",
}

func (c Code) String() string {
	name, ok := codeNames[c]
	if ok {
		return name
	}
	return fmt.Sprintf("{Code %d}", c)
}

// CodeOf translates the error into a task result code.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	switch Kind(err) {
	case ErrConfig:
		return ConfigFailure
	case ErrNetwork:
		return NetworkFailure
	case ErrProtocol:
		return ProtocolFailure
	case ErrFormat:
		return FormatFailure
	default:
		return Failure
	}
}
