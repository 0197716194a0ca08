//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/task"
)

var (
	bo              = binary.BigEndian
	_  link.Channel = &Network{}
)

// DialRetryDelay defines the delay between connection attempts.
var DialRetryDelay = time.Second

// Network implements the link.Channel over TCP connections. Inbound
// messages are buffered in the network's mailbox and outbound
// connections are pooled by peer address.
type Network struct {
	m        sync.Mutex
	peers    map[string]*peer
	inbound  map[*Conn]struct{}
	listener net.Listener
	mailbox  *link.Mailbox
	log      logr.Logger
	closed   bool
	wg       sync.WaitGroup
}

type peer struct {
	m    sync.Mutex
	addr string
	conn *Conn
}

// NewNetwork creates a new network listening at the address.
func NewNetwork(addr string, log logr.Logger) (*Network, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	nw := &Network{
		peers:    make(map[string]*peer),
		inbound:  make(map[*Conn]struct{}),
		listener: listener,
		mailbox:  link.NewMailbox(),
		log:      log.WithName("p2p"),
	}
	nw.wg.Add(1)
	go nw.acceptLoop()
	return nw, nil
}

// Addr returns the network's listening address.
func (nw *Network) Addr() net.Addr {
	return nw.listener.Addr()
}

// Close closes the network, its listener, and all connections.
func (nw *Network) Close() error {
	nw.m.Lock()
	if nw.closed {
		nw.m.Unlock()
		return nil
	}
	nw.closed = true
	peers := nw.peers
	nw.peers = make(map[string]*peer)
	var inbound []*Conn
	for conn := range nw.inbound {
		inbound = append(inbound, conn)
	}
	nw.m.Unlock()

	err := nw.listener.Close()
	for _, p := range peers {
		p.m.Lock()
		if p.conn != nil {
			p.conn.Close()
			p.conn = nil
		}
		p.m.Unlock()
	}
	for _, conn := range inbound {
		conn.Close()
	}
	nw.mailbox.Close()
	nw.wg.Wait()

	return err
}

// Stats returns the I/O stats of the outbound connections.
func (nw *Network) Stats() IOStats {
	nw.m.Lock()
	defer nw.m.Unlock()

	result := NewIOStats()
	for _, p := range nw.peers {
		if p.conn != nil {
			result = result.Add(p.conn.Stats)
		}
	}
	return result
}

// Send sends the message to the destination node.
func (nw *Network) Send(ctx context.Context, dst task.Node,
	msg *link.Message) error {

	p, err := nw.peer(dst.Address)
	if err != nil {
		return err
	}

	p.m.Lock()
	defer p.m.Unlock()

	if p.conn == nil {
		conn, err := nw.dial(ctx, dst)
		if err != nil {
			return err
		}
		p.conn = conn
	}
	err = writeMessage(p.conn, msg)
	if err != nil {
		// Drop the broken connection; the next send reconnects.
		p.conn.Close()
		p.conn = nil
	}
	return err
}

// Recv receives the next message for the session, tag, and the
// receiving party.
func (nw *Network) Recv(ctx context.Context, session, tag, to string) (
	*link.Message, error) {
	return nw.mailbox.Get(ctx, session, tag, to)
}

func (nw *Network) peer(addr string) (*peer, error) {
	nw.m.Lock()
	defer nw.m.Unlock()

	if nw.closed {
		return nil, net.ErrClosed
	}
	p, ok := nw.peers[addr]
	if !ok {
		p = &peer{
			addr: addr,
		}
		nw.peers[addr] = p
	}
	return p, nil
}

func (nw *Network) dial(ctx context.Context, dst task.Node) (*Conn, error) {
	var dialer net.Dialer
	for {
		nw.log.V(1).Info("connecting", "peer", dst.String())
		nc, err := dialer.DialContext(ctx, "tcp", dst.Address)
		if err == nil {
			nw.log.V(1).Info("connected", "peer", dst.String())
			return NewConn(nc), nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		nw.log.V(1).Info("connect failed, retrying", "peer", dst.String(),
			"delay", DialRetryDelay, "error", err.Error())
		select {
		case <-time.After(DialRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (nw *Network) acceptLoop() {
	defer nw.wg.Done()
	for {
		nc, err := nw.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				nw.log.Error(err, "accept failed")
			}
			return
		}
		conn := NewConn(nc)

		nw.m.Lock()
		if nw.closed {
			nw.m.Unlock()
			conn.Close()
			return
		}
		nw.inbound[conn] = struct{}{}
		nw.wg.Add(1)
		nw.m.Unlock()

		go nw.readLoop(conn, nc.RemoteAddr())
	}
}

func (nw *Network) readLoop(conn *Conn, remote net.Addr) {
	defer nw.wg.Done()
	defer func() {
		nw.m.Lock()
		delete(nw.inbound, conn)
		nw.m.Unlock()
		conn.Close()
	}()

	for {
		msg, err := readMessage(conn)
		if err != nil {
			nw.log.V(1).Info("inbound connection closed", "remote",
				remote.String(), "reason", err.Error())
			return
		}
		if err := nw.mailbox.Put(msg); err != nil {
			return
		}
	}
}

func writeMessage(conn *Conn, msg *link.Message) error {
	for _, str := range []string{msg.Session, msg.Tag, msg.From, msg.To} {
		if err := conn.SendString(str); err != nil {
			return err
		}
	}
	if err := conn.SendData(msg.Payload); err != nil {
		return err
	}
	return conn.Flush()
}

func readMessage(conn *Conn) (*link.Message, error) {
	var fields [4]string
	for i := range fields {
		str, err := conn.ReceiveString()
		if err != nil {
			return nil, err
		}
		fields[i] = str
	}
	payload, err := conn.ReceiveData()
	if err != nil {
		return nil, fmt.Errorf("message %s:%s: %w", fields[0], fields[1], err)
	}
	return &link.Message{
		Session: fields[0],
		Tag:     fields[1],
		From:    fields[2],
		To:      fields[3],
		Payload: payload,
	}, nil
}
