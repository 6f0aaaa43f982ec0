// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package linktest provides an in-memory controller connection for tests.
package linktest

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// pollTimeout stands in for the serial read timeout
const pollTimeout = 5 * time.Millisecond

// Conn is a fake controller port. Bytes passed to Feed are returned by Read;
// bytes written are recorded.
type Conn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	pending  []byte
	writes   []byte
	readErr  error
	writeErr error
}

var _ link.Conn = (*Conn)(nil)

func NewConn() *Conn {
	return &Conn{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// Feed queues raw bytes for Read
func (c *Conn) Feed(data []byte) {
	c.in <- append([]byte(nil), data...)
}

// Send queues one framed payload
func (c *Conn) Send(payload string) {
	c.Feed(frame.MustEncode(payload))
}

// FailReads makes every subsequent Read return err
func (c *Conn) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailWrites makes every subsequent Write return err
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Written returns everything written so far
func (c *Conn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.writes)
}

// Closed reports whether Close was called
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return 0, err
	}
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	select {
	case <-c.closed:
		return 0, io.EOF
	case data := <-c.in:
		c.mu.Lock()
		defer c.mu.Unlock()
		n := copy(p, data)
		c.pending = append(c.pending, data[n:]...)
		return n, nil
	case <-time.After(pollTimeout):
		return 0, nil
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Closed() {
		return 0, io.ErrClosedPipe
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, p...)
	return len(p), nil
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// ErrNoConn is returned by Dialer when its queue is empty
var ErrNoConn = errors.New("linktest: no connection queued")

// Dialer hands out queued connections in order
type Dialer struct {
	mu       sync.Mutex
	conns    []*Conn
	failures int
	dials    int
}

// Queue adds connections to hand out
func (d *Dialer) Queue(conns ...*Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, conns...)
}

// FailNext makes the next n dials fail
func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

// Dials returns the number of dial attempts
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Dial satisfies link.Dialer
func (d *Dialer) Dial(_ context.Context) (link.Conn, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, "", errors.New("linktest: dial refused")
	}
	if len(d.conns) == 0 {
		return nil, "", ErrNoConn
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, "linktest", nil
}
