//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package p2p implements the peer-to-peer wire protocol and the TCP
// network between task parties.
package p2p

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/markkurossi/mpsi/ot"
)

var (
	_ ot.IO = &Conn{}
)

const (
	numBuffers   = 3
	writeBufSize = 64 * 1024
	readBufSize  = 1024 * 1024
)

// Conn implements a buffered protocol connection.
type Conn struct {
	conn      io.ReadWriter
	WriteBuf  []byte
	WritePos  int
	ReadBuf   []byte
	ReadStart int
	ReadEnd   int
	Stats     IOStats

	fromWriter chan []byte
	toWriter   chan []byte
	errMu      sync.Mutex
	writerErr  error
	closed     bool
}

// IOStats implements I/O statistics.
type IOStats struct {
	Sent    *atomic.Uint64
	Recvd   *atomic.Uint64
	Flushed *atomic.Uint64
}

// NewIOStats creates a new I/O statistics object.
func NewIOStats() IOStats {
	return IOStats{
		Sent:    new(atomic.Uint64),
		Recvd:   new(atomic.Uint64),
		Flushed: new(atomic.Uint64),
	}
}

// Add adds the argument stats to this IOStats and returns the sum.
func (stats IOStats) Add(o IOStats) IOStats {
	result := NewIOStats()
	result.Sent.Store(stats.Sent.Load() + o.Sent.Load())
	result.Recvd.Store(stats.Recvd.Load() + o.Recvd.Load())
	result.Flushed.Store(stats.Flushed.Load() + o.Flushed.Load())
	return result
}

// Sum returns sum of sent and received bytes.
func (stats IOStats) Sum() uint64 {
	return stats.Sent.Load() + stats.Recvd.Load()
}

// NewConn creates a new connection around the argument connection.
func NewConn(conn io.ReadWriter) *Conn {
	c := &Conn{
		conn:       conn,
		ReadBuf:    make([]byte, readBufSize),
		fromWriter: make(chan []byte, numBuffers),
		toWriter:   make(chan []byte, numBuffers),
		Stats:      NewIOStats(),
	}

	go c.writer()

	c.WriteBuf = <-c.fromWriter

	return c
}

func (c *Conn) writer() {
	for i := 0; i < numBuffers; i++ {
		c.fromWriter <- make([]byte, writeBufSize)
	}

	for buf := range c.toWriter {
		if c.writeError() == nil {
			_, err := c.conn.Write(buf)
			if err != nil {
				c.errMu.Lock()
				c.writerErr = err
				c.errMu.Unlock()
			}
		}
		c.fromWriter <- buf[0:cap(buf)]
	}
	close(c.fromWriter)
}

// writeError returns the first error of the writer goroutine.
func (c *Conn) writeError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.writerErr
}

// Flush flushed any pending data in the connection.
func (c *Conn) Flush() error {
	if c.closed {
		return io.ErrClosedPipe
	}
	if err := c.writeError(); err != nil {
		return err
	}
	if c.WritePos > 0 {
		c.Stats.Sent.Add(uint64(c.WritePos))
		c.toWriter <- c.WriteBuf[0:c.WritePos]

		next := <-c.fromWriter
		if err := c.writeError(); err != nil {
			return err
		}

		c.WriteBuf = next
		c.WritePos = 0
		c.Stats.Flushed.Add(1)
	}
	return nil
}

// Fill fills the input buffer from the connection so that it holds
// at least n unread bytes. Any unused data in the buffer is moved to
// the beginning of the buffer.
func (c *Conn) Fill(n int) error {
	if n > len(c.ReadBuf) {
		return fmt.Errorf("read buffer too short: %d > %d", n, len(c.ReadBuf))
	}
	if err := c.writeError(); err != nil {
		return err
	}
	if c.ReadStart < c.ReadEnd {
		copy(c.ReadBuf[0:], c.ReadBuf[c.ReadStart:c.ReadEnd])
		c.ReadEnd -= c.ReadStart
		c.ReadStart = 0
	} else {
		c.ReadStart = 0
		c.ReadEnd = 0
	}
	for c.ReadStart+n > c.ReadEnd {
		got, err := c.conn.Read(c.ReadBuf[c.ReadEnd:])
		if err != nil {
			return err
		}
		c.Stats.Recvd.Add(uint64(got))
		c.ReadEnd += got
	}
	return nil
}

// Close flushes any pending data and closes the connection. The
// underlying connection is closed if it implements io.Closer.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	flushErr := c.Flush()
	c.closed = true

	// Wait that the writer completes.
	close(c.toWriter)
	for range c.fromWriter {
	}

	var err error
	closer, ok := c.conn.(io.Closer)
	if ok {
		err = closer.Close()
	}
	if flushErr != nil {
		return flushErr
	}
	if err := c.writeError(); err != nil {
		return err
	}
	return err
}

// SendByte sends a byte value.
func (c *Conn) SendByte(val byte) error {
	if c.WritePos+1 > len(c.WriteBuf) {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	c.WriteBuf[c.WritePos] = val
	c.WritePos++
	return nil
}

// SendUint32 sends an uint32 value.
func (c *Conn) SendUint32(val int) error {
	if c.WritePos+4 > len(c.WriteBuf) {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	bo.PutUint32(c.WriteBuf[c.WritePos:], uint32(val))
	c.WritePos += 4
	return nil
}

// SendUint64 sends an uint64 value.
func (c *Conn) SendUint64(val uint64) error {
	if c.WritePos+8 > len(c.WriteBuf) {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	bo.PutUint64(c.WriteBuf[c.WritePos:], val)
	c.WritePos += 8
	return nil
}

// SendData sends binary data. The data can be larger than the write
// buffer in which case it is flushed in multiple writes.
func (c *Conn) SendData(val []byte) error {
	if err := c.SendUint32(len(val)); err != nil {
		return err
	}
	for len(val) > 0 {
		if c.WritePos >= len(c.WriteBuf) {
			if err := c.Flush(); err != nil {
				return err
			}
		}
		n := copy(c.WriteBuf[c.WritePos:], val)
		c.WritePos += n
		val = val[n:]
	}
	return nil
}

// SendString sends a string value.
func (c *Conn) SendString(val string) error {
	return c.SendData([]byte(val))
}

// ReceiveByte receives a byte value.
func (c *Conn) ReceiveByte() (byte, error) {
	if c.ReadStart+1 > c.ReadEnd {
		if err := c.Fill(1); err != nil {
			return 0, err
		}
	}
	val := c.ReadBuf[c.ReadStart]
	c.ReadStart++
	return val, nil
}

// ReceiveUint32 receives an uint32 value.
func (c *Conn) ReceiveUint32() (int, error) {
	if c.ReadStart+4 > c.ReadEnd {
		if err := c.Fill(4); err != nil {
			return 0, err
		}
	}
	val := bo.Uint32(c.ReadBuf[c.ReadStart:])
	c.ReadStart += 4

	return int(val), nil
}

// ReceiveUint64 receives an uint64 value.
func (c *Conn) ReceiveUint64() (uint64, error) {
	if c.ReadStart+8 > c.ReadEnd {
		if err := c.Fill(8); err != nil {
			return 0, err
		}
	}
	val := bo.Uint64(c.ReadBuf[c.ReadStart:])
	c.ReadStart += 8

	return val, nil
}

// ReceiveData receives binary data.
func (c *Conn) ReceiveData() ([]byte, error) {
	l, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	result := make([]byte, l)

	if l <= len(c.ReadBuf) {
		if c.ReadStart+l > c.ReadEnd {
			if err := c.Fill(l); err != nil {
				return nil, err
			}
		}
		copy(result, c.ReadBuf[c.ReadStart:c.ReadStart+l])
		c.ReadStart += l
		return result, nil
	}

	// Large data: consume the buffered prefix and read the rest
	// directly from the connection.
	n := copy(result, c.ReadBuf[c.ReadStart:c.ReadEnd])
	c.ReadStart += n
	got, err := io.ReadFull(c.conn, result[n:])
	c.Stats.Recvd.Add(uint64(got))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReceiveString receives a string value.
func (c *Conn) ReceiveString() (string, error) {
	data, err := c.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
