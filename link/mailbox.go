//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package link

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when receiving from a closed mailbox.
var ErrClosed = errors.New("mailbox closed")

type mailKey struct {
	session string
	tag     string
	to      string
}

// Mailbox buffers messages until they are received. It is safe for
// concurrent use.
type Mailbox struct {
	m       sync.Mutex
	queues  map[mailKey][]*Message
	changed chan struct{}
	closed  bool
}

// NewMailbox creates a new mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		queues:  make(map[mailKey][]*Message),
		changed: make(chan struct{}),
	}
}

// Put adds the message to the mailbox.
func (mb *Mailbox) Put(msg *Message) error {
	mb.m.Lock()
	defer mb.m.Unlock()

	if mb.closed {
		return ErrClosed
	}
	key := mailKey{
		session: msg.Session,
		tag:     msg.Tag,
		to:      msg.To,
	}
	mb.queues[key] = append(mb.queues[key], msg)
	mb.notify()
	return nil
}

// Get removes and returns the next message for the key. The function
// blocks until a message is available, the context is done, or the
// mailbox is closed.
func (mb *Mailbox) Get(ctx context.Context, session, tag, to string) (
	*Message, error) {

	key := mailKey{
		session: session,
		tag:     tag,
		to:      to,
	}
	for {
		mb.m.Lock()
		queue := mb.queues[key]
		if len(queue) > 0 {
			msg := queue[0]
			if len(queue) == 1 {
				delete(mb.queues, key)
			} else {
				mb.queues[key] = queue[1:]
			}
			mb.m.Unlock()
			return msg, nil
		}
		if mb.closed {
			mb.m.Unlock()
			return nil, ErrClosed
		}
		changed := mb.changed
		mb.m.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pending returns the number of buffered messages.
func (mb *Mailbox) Pending() int {
	mb.m.Lock()
	defer mb.m.Unlock()

	var count int
	for _, queue := range mb.queues {
		count += len(queue)
	}
	return count
}

// Close closes the mailbox and wakes up all pending receivers.
func (mb *Mailbox) Close() error {
	mb.m.Lock()
	defer mb.m.Unlock()

	if !mb.closed {
		mb.closed = true
		mb.notify()
	}
	return nil
}

// notify wakes up all waiters. The caller must hold the mailbox
// lock.
func (mb *Mailbox) notify() {
	close(mb.changed)
	mb.changed = make(chan struct{})
}
