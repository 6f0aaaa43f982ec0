// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/internal/link/linktest"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

var fastTiming = link.Config{
	SettleDelay:      time.Millisecond,
	ReconnectBackoff: 5 * time.Millisecond,
}

type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) handle(_ context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func startManager(t *testing.T, d *linktest.Dialer, onConnect link.ConnectHook) (*link.Manager, *collector, context.CancelFunc) {
	t.Helper()
	m := link.NewManager(d.Dial, fastTiming, zaptest.NewLogger(t))
	if onConnect != nil {
		m.OnConnect(onConnect)
	}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Open(ctx))

	c := &collector{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, c.handle)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, c, cancel
}

func TestManager_OpenFailureIsReturned(t *testing.T) {
	d := &linktest.Dialer{}
	m := link.NewManager(d.Dial, fastTiming, zaptest.NewLogger(t))

	err := m.Open(context.Background())
	var linkErr *link.LinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, "open", linkErr.Op)
}

func TestManager_DeliversDecodedText(t *testing.T) {
	conn := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(conn)

	_, c, _ := startManager(t, d, nil)

	conn.Feed([]byte("noise"))
	conn.Send("001")
	conn.Feed([]byte{frame.StartByte, 0xC3, 0x28, frame.EndByte}) // invalid UTF-8
	conn.Feed([]byte{frame.StartByte, 'H'})
	conn.Feed([]byte{'B', frame.EndByte})

	require.Eventually(t, func() bool { return len(c.get()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"001", "HB"}, c.get())
}

func TestManager_OnConnectRunsAfterOpen(t *testing.T) {
	conn := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(conn)

	var syncs int
	var mu sync.Mutex
	startManager(t, d, func(context.Context, func(frame.Command) error) {
		mu.Lock()
		defer mu.Unlock()
		syncs++
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, syncs)
}

func TestManager_WritesRefusedUntilConnectHookReturns(t *testing.T) {
	conn := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(conn)
	m := link.NewManager(d.Dial, fastTiming, zaptest.NewLogger(t))

	var outside, inside error
	m.OnConnect(func(_ context.Context, write func(frame.Command) error) {
		outside = m.Write(frame.CommandLock)
		inside = write(frame.CommandUnlock)
	})
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	assert.ErrorIs(t, outside, link.ErrNotReady)
	assert.NoError(t, inside)
	assert.Equal(t, "1", conn.Written())

	require.NoError(t, m.Write(frame.CommandLock))
	assert.Equal(t, "10", conn.Written())
}

func TestManager_WritesRefusedWhileReconnectSettles(t *testing.T) {
	first := linktest.NewConn()
	second := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(first, second)

	release := make(chan struct{})
	var mu sync.Mutex
	syncs := 0
	m, _, _ := startManager(t, d, func(ctx context.Context, _ func(frame.Command) error) {
		mu.Lock()
		syncs++
		n := syncs
		mu.Unlock()
		if n == 2 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
	})

	first.FailReads(errors.New("device unplugged"))
	require.Eventually(t, func() bool { return d.Dials() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return errors.Is(m.Write(frame.CommandUnlock), link.ErrNotReady)
	}, time.Second, time.Millisecond)
	assert.Empty(t, second.Written())

	close(release)
	require.Eventually(t, func() bool { return m.Write(frame.CommandUnlock) == nil }, time.Second, time.Millisecond)
	assert.Equal(t, "1", second.Written())
}

func TestManager_ReconnectsAfterReadFailure(t *testing.T) {
	first := linktest.NewConn()
	second := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(first, second)

	var mu sync.Mutex
	syncs := 0
	_, c, _ := startManager(t, d, func(context.Context, func(frame.Command) error) {
		mu.Lock()
		defer mu.Unlock()
		syncs++
	})

	d.FailNext(2)
	first.FailReads(errors.New("device unplugged"))

	require.Eventually(t, first.Closed, time.Second, time.Millisecond)
	second.Send("HB")

	require.Eventually(t, func() bool { return len(c.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 4, d.Dials(), "open, two refused reopens, then success")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, syncs, "sync runs on the initial open and on the reconnect")
}

func TestManager_WriteFailureTriggersReconnect(t *testing.T) {
	first := linktest.NewConn()
	second := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(first, second)

	m, _, _ := startManager(t, d, nil)

	first.FailWrites(errors.New("EIO"))
	err := m.Write(frame.CommandUnlock)
	var linkErr *link.LinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, "write", linkErr.Op)

	require.Eventually(t, func() bool { return d.Dials() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return m.Write(frame.CommandLock) == nil }, time.Second, time.Millisecond)
	assert.Equal(t, "0", second.Written())
}

func TestManager_CancelClosesConnection(t *testing.T) {
	conn := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(conn)

	m, _, cancel := startManager(t, d, nil)
	cancel()

	require.Eventually(t, conn.Closed, time.Second, time.Millisecond)
	assert.Error(t, m.Write(frame.CommandLock))
}

func TestManager_StatsCountFrames(t *testing.T) {
	conn := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(conn)

	m, c, _ := startManager(t, d, nil)
	conn.Send("HB")
	conn.Send("WHAT")

	require.Eventually(t, func() bool { return len(c.get()) == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return m.Stats().ValidFrames == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), m.Stats().UnknownMessages)
}

func TestManager_OversizeFrameIsDroppedNotDelivered(t *testing.T) {
	conn := linktest.NewConn()
	d := &linktest.Dialer{}
	d.Queue(conn)

	m, c, _ := startManager(t, d, nil)
	long := append([]byte{frame.StartByte}, bytes.Repeat([]byte{'A'}, frame.MaxPayloadSize+1)...)
	conn.Feed(append(long, frame.EndByte))
	conn.Send("HB")

	require.Eventually(t, func() bool { return len(c.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"HB"}, c.get())
	require.Eventually(t, func() bool { return m.Stats().OversizeFrames == 1 }, time.Second, time.Millisecond)
}
