//
// pipe.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.

package ot

import (
	"encoding/binary"
	"io"
)

var (
	bo    = binary.BigEndian
	_  IO = &Pipe{}
)

// Pipe implements the IO interface with in-memory io.Pipe.
type Pipe struct {
	hdr [4]byte
	r   *io.PipeReader
	w   *io.PipeWriter
}

// NewPipe creates a new in-memory pipe.
func NewPipe() (*Pipe, *Pipe) {
	ar, aw := io.Pipe()
	br, bw := io.Pipe()

	return &Pipe{
			r: ar,
			w: bw,
		}, &Pipe{
			r: br,
			w: aw,
		}
}

// SendData sends binary data.
func (p *Pipe) SendData(val []byte) error {
	if err := p.SendUint32(len(val)); err != nil {
		return err
	}
	if len(val) == 0 {
		return nil
	}
	_, err := p.w.Write(val)
	return err
}

// SendUint32 sends an uint32 value.
func (p *Pipe) SendUint32(val int) error {
	var buf [4]byte
	bo.PutUint32(buf[:], uint32(val))
	_, err := p.w.Write(buf[:])
	return err
}

// Flush flushed any pending data in the connection.
func (p *Pipe) Flush() error {
	return nil
}

// Close closes the pipe.
func (p *Pipe) Close() error {
	return p.w.Close()
}

// ReceiveData receives binary data.
func (p *Pipe) ReceiveData() ([]byte, error) {
	l, err := p.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	result := make([]byte, l)
	if _, err := io.ReadFull(p.r, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ReceiveUint32 receives an uint32 value.
func (p *Pipe) ReceiveUint32() (int, error) {
	if _, err := io.ReadFull(p.r, p.hdr[:]); err != nil {
		return 0, err
	}
	return int(bo.Uint32(p.hdr[:])), nil
}
