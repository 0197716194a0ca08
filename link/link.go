//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package link implements tagged message passing between task
// parties.
package link

import (
	"context"
	"fmt"

	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

// Message defines a tagged message between two parties. The Session
// scopes the message to a task execution.
type Message struct {
	Session string
	Tag     string
	From    string
	To      string
	Payload []byte
}

func (m *Message) String() string {
	return fmt.Sprintf("%s:%s %s->%s [%d]byte", m.Session, m.Tag, m.From,
		m.To, len(m.Payload))
}

// Channel implements reliable and ordered message delivery between
// parties. Messages are delivered to the receiver's mailbox by their
// session, tag, and receiver name. Both operations block until the
// transport has completed the I/O, the context is canceled, or the
// channel is closed.
type Channel interface {
	// Send sends the message to the destination node.
	Send(ctx context.Context, dst task.Node, msg *Message) error

	// Recv receives the next message for the session, tag, and the
	// receiving party.
	Recv(ctx context.Context, session, tag, to string) (*Message, error)
}

// Session binds a channel to a task identity and to the local party.
type Session struct {
	Channel Channel
	ID      task.Identity
	Self    task.Node
}

// NewSession creates a new session for the task identity.
func NewSession(ch Channel, id task.Identity, self task.Node) *Session {
	return &Session{
		Channel: ch,
		ID:      id,
		Self:    self,
	}
}

// WithID returns a copy of the session for the task identity id.
func (s *Session) WithID(id task.Identity) *Session {
	return &Session{
		Channel: s.Channel,
		ID:      id,
		Self:    s.Self,
	}
}

// Send sends the payload to dst with the tag.
func (s *Session) Send(ctx context.Context, tag string, dst task.Node,
	payload []byte) error {

	err := s.Channel.Send(ctx, dst, &Message{
		Session: s.ID.String(),
		Tag:     tag,
		From:    s.Self.Name,
		To:      dst.Name,
		Payload: payload,
	})
	if err != nil {
		return retcode.Wrap(retcode.ErrNetwork,
			fmt.Errorf("send %s to %v: %w", tag, dst, err))
	}
	return nil
}

// Recv receives the payload with the tag. The src identifies the
// node the message is expected through. It is used for diagnostics
// only since the delivery is keyed by the session, tag, and the
// receiver.
func (s *Session) Recv(ctx context.Context, tag string, src task.Node) (
	[]byte, error) {

	msg, err := s.Channel.Recv(ctx, s.ID.String(), tag, s.Self.Name)
	if err != nil {
		return nil, retcode.Wrap(retcode.ErrNetwork,
			fmt.Errorf("recv %s from %v: %w", tag, src, err))
	}
	return msg.Payload, nil
}
