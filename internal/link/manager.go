// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link owns the controller connection: open, read, write, and
// reconnect.
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// ErrNotConnected is returned by Write while no connection is open
var ErrNotConnected = errors.New("not connected")

// ErrNotReady is returned by Write between opening a connection and the end
// of its connect hook
var ErrNotReady = errors.New("connection settling")

// LinkError reports a connection failure. It is always recoverable by the
// reconnect loop.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return "link " + e.Op + ": " + e.Err.Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Cause supports github.com/pkg/errors.Cause
func (e *LinkError) Cause() error {
	return e.Err
}

// Config holds the link timing
type Config struct {
	// SettleDelay is waited after every open before the first write
	SettleDelay time.Duration

	// ReconnectBackoff separates failed reopen attempts
	ReconnectBackoff time.Duration
}

// Handler receives every payload that decoded to valid UTF-8 text
type Handler func(ctx context.Context, text string)

// ConnectHook runs after each open and settle. write reaches the new
// connection while ordinary Write calls are still refused.
type ConnectHook func(ctx context.Context, write func(frame.Command) error)

// Manager handles connection lifecycle and reconnection
type Manager struct {
	dial   Dialer
	cfg    Config
	logger *zap.Logger

	// onConnect runs after every successful open and settle
	onConnect ConnectHook

	mu       sync.Mutex
	conn     Conn
	connInfo string
	broken   bool
	ready    bool

	statsMu sync.Mutex
	stats   *frame.Statistics
}

// NewManager creates a manager. Nothing is opened until Open.
func NewManager(dial Dialer, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		dial:   dial,
		cfg:    cfg,
		logger: logger,
		stats:  frame.NewStatistics(),
	}
}

// OnConnect registers the hook run after each (re)connect. It must be set
// before Open.
func (m *Manager) OnConnect(fn ConnectHook) {
	m.onConnect = fn
}

func (m *Manager) getConn() (Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn, m.broken
}

func (m *Manager) setConn(conn Conn, connInfo string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
	m.connInfo = connInfo
	m.broken = false
	m.ready = false
}

func (m *Manager) setReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
}

// ConnInfo describes the current connection
func (m *Manager) ConnInfo() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connInfo
}

// Open establishes the first connection. A failure here is returned to the
// caller; later failures are handled by Run.
func (m *Manager) Open(ctx context.Context) error {
	if err := m.connect(ctx); err != nil {
		return err
	}
	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	conn, connInfo, err := m.dial(ctx)
	if err != nil {
		return &LinkError{Op: "open", Err: err}
	}
	m.setConn(conn, connInfo)
	m.logger.Info("connected", zap.String("conn", connInfo))

	if !sleep(ctx, m.cfg.SettleDelay) {
		return ctx.Err()
	}

	if m.onConnect != nil {
		m.onConnect(ctx, m.writeSettled)
	}
	m.setReady()
	return nil
}

// Write sends one command byte. A failed write marks the connection broken
// so the read loop reconnects. Writes are refused with ErrNotReady until the
// connect hook of the current connection has returned.
func (m *Manager) Write(cmd frame.Command) error {
	return m.write(cmd, true)
}

// writeSettled is the connect hook's writer
func (m *Manager) writeSettled(cmd frame.Command) error {
	return m.write(cmd, false)
}

func (m *Manager) write(cmd frame.Command, needReady bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.broken {
		return &LinkError{Op: "write", Err: ErrNotConnected}
	}
	if needReady && !m.ready {
		return &LinkError{Op: "write", Err: ErrNotReady}
	}
	if _, err := m.conn.Write(cmd.Bytes()); err != nil {
		m.broken = true
		return &LinkError{Op: "write", Err: err}
	}
	return nil
}

// Close closes the current connection. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// Stats returns a copy of the frame statistics
func (m *Manager) Stats() frame.Statistics {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return *m.stats
}

// Run reads until ctx is cancelled, reconnecting indefinitely on failure.
// Cancelling ctx closes the connection to unblock a pending read.
func (m *Manager) Run(ctx context.Context, handle Handler) {
	stop := context.AfterFunc(ctx, func() { m.Close() })
	defer stop()

	for {
		err := m.readFromConnection(ctx, handle)
		if ctx.Err() != nil {
			return
		}

		m.logger.Error("serial read error", zap.Error(err))
		if !m.reconnect(ctx) {
			return
		}
	}
}

// readFromConnection reads frames until the connection fails
func (m *Manager) readFromConnection(ctx context.Context, handle Handler) error {
	decoder := frame.NewDecoder()
	buf := make([]byte, 128)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, broken := m.getConn()
		if conn == nil {
			return &LinkError{Op: "read", Err: ErrNotConnected}
		}
		if broken {
			return &LinkError{Op: "read", Err: errors.New("connection marked broken by failed write")}
		}

		n, err := conn.Read(buf)
		if err != nil {
			return &LinkError{Op: "read", Err: err}
		}

		// n == 0 is a read timeout: an empty poll
		for i := 0; i < n; i++ {
			f, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				m.logger.Warn("frame discarded", zap.Error(decodeErr))
				m.record(decoder, nil, decodeErr, frame.MsgUnknown)
				continue
			}
			if f == nil {
				continue
			}

			text, textErr := f.Text()
			if textErr != nil {
				m.logger.Error("decoding error",
					zap.String("payload", frame.FormatHex(f.Payload())), zap.Error(textErr))
				m.record(decoder, f, textErr, frame.MsgUnknown)
				continue
			}

			m.record(decoder, f, nil, frame.Classify(text))
			handle(ctx, text)
		}
	}
}

func (m *Manager) record(d *frame.Decoder, f *frame.Frame, err error, kind frame.MessageKind) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.stats.Absorb(d)
	m.stats.Update(f, err, kind)
}

// reconnect closes the failed connection and reopens it, waiting
// ReconnectBackoff between attempts. Returns false if ctx was cancelled.
func (m *Manager) reconnect(ctx context.Context) bool {
	m.Close()

	for attempt := 1; ; attempt++ {
		err := m.connect(ctx)
		if err == nil {
			m.logger.Info("reconnected", zap.Int("attempt", attempt))
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		m.logger.Error("reconnection error",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", m.cfg.ReconnectBackoff),
			zap.Error(err))

		if !sleep(ctx, m.cfg.ReconnectBackoff) {
			return false
		}
	}
}

// sleep waits for d or ctx, reporting whether the full delay elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
