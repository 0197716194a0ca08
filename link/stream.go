//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package link

import (
	"context"
	"io"
	"sync"

	"github.com/markkurossi/mpsi/task"
)

var (
	_ io.ReadWriteCloser = &Stream{}
)

// Stream implements an ordered byte stream over session messages
// with a fixed tag and peer. Each Write is sent as one message and
// Read consumes messages in order.
type Stream struct {
	session *Session
	tag     string
	peer    task.Node
	ctx     context.Context
	cancel  context.CancelFunc
	buf     []byte

	m      sync.Mutex
	sndErr error
}

// NewStream creates a new byte stream to the peer. Closing the
// stream cancels all its pending reads and writes.
func NewStream(ctx context.Context, session *Session, tag string,
	peer task.Node) *Stream {

	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		session: session,
		tag:     tag,
		peer:    peer,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Write sends data to the peer. A failed send cancels the stream
// and the same error is returned from all subsequent reads.
func (s *Stream) Write(data []byte) (int, error) {
	if err := s.sendError(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	msg := append([]byte(nil), data...)
	if err := s.session.Send(s.ctx, s.tag, s.peer, msg); err != nil {
		s.m.Lock()
		if s.sndErr == nil {
			s.sndErr = err
		}
		s.m.Unlock()
		s.cancel()
		return 0, err
	}
	return len(data), nil
}

func (s *Stream) sendError() error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.sndErr
}

// Read reads data from the peer.
func (s *Stream) Read(data []byte) (int, error) {
	for len(s.buf) == 0 {
		payload, err := s.session.Recv(s.ctx, s.tag, s.peer)
		if err != nil {
			if sndErr := s.sendError(); sndErr != nil {
				return 0, sndErr
			}
			return 0, err
		}
		s.buf = payload
	}
	n := copy(data, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close closes the stream.
func (s *Stream) Close() error {
	s.cancel()
	return nil
}
