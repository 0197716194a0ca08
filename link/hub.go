//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package link

import (
	"context"
	"fmt"
	"sync"

	"github.com/markkurossi/mpsi/task"
)

var (
	_ Channel = &Endpoint{}
)

// Hub implements an in-memory network of endpoints addressed by
// their node addresses.
type Hub struct {
	m         sync.Mutex
	endpoints map[string]*Endpoint
}

// NewHub creates a new in-memory hub.
func NewHub() *Hub {
	return &Hub{
		endpoints: make(map[string]*Endpoint),
	}
}

// Endpoint returns the hub endpoint for the address, creating it if
// needed.
func (hub *Hub) Endpoint(addr string) *Endpoint {
	hub.m.Lock()
	defer hub.m.Unlock()

	ep, ok := hub.endpoints[addr]
	if !ok {
		ep = &Endpoint{
			hub:     hub,
			addr:    addr,
			mailbox: NewMailbox(),
		}
		hub.endpoints[addr] = ep
	}
	return ep
}

func (hub *Hub) lookup(addr string) (*Endpoint, bool) {
	hub.m.Lock()
	defer hub.m.Unlock()
	ep, ok := hub.endpoints[addr]
	return ep, ok
}

// Endpoint implements a Channel endpoint in the Hub.
type Endpoint struct {
	hub     *Hub
	addr    string
	mailbox *Mailbox
	sent    int
}

// Send sends the message to the destination node.
func (ep *Endpoint) Send(ctx context.Context, dst task.Node,
	msg *Message) error {

	if err := ctx.Err(); err != nil {
		return err
	}
	peer, ok := ep.hub.lookup(dst.Address)
	if !ok {
		return fmt.Errorf("unknown address %s", dst.Address)
	}
	m := *msg
	m.Payload = append([]byte(nil), msg.Payload...)
	if err := peer.mailbox.Put(&m); err != nil {
		return err
	}
	ep.hub.m.Lock()
	ep.sent++
	ep.hub.m.Unlock()
	return nil
}

// Recv receives the next message for the session, tag, and the
// receiving party.
func (ep *Endpoint) Recv(ctx context.Context, session, tag, to string) (
	*Message, error) {
	return ep.mailbox.Get(ctx, session, tag, to)
}

// Sent returns the number of messages sent from the endpoint.
func (ep *Endpoint) Sent() int {
	ep.hub.m.Lock()
	defer ep.hub.m.Unlock()
	return ep.sent
}

// Pending returns the number of undelivered messages in the
// endpoint's mailbox.
func (ep *Endpoint) Pending() int {
	return ep.mailbox.Pending()
}

// Close closes the endpoint. All pending receives fail with
// ErrClosed.
func (ep *Endpoint) Close() error {
	return ep.mailbox.Close()
}
