// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/internal/notify"
	"github.com/Thermoquad/doorbridge/internal/store"
	"github.com/Thermoquad/doorbridge/internal/store/memory"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

const testDevice = "Home_77F2A2"

// fakeLink records commands instead of writing them to a port
type fakeLink struct {
	mu        sync.Mutex
	writes    []byte
	writeErr  error
	onConnect link.ConnectHook
	closes    int
}

func (l *fakeLink) OnConnect(fn link.ConnectHook) {
	l.onConnect = fn
}

func (l *fakeLink) Run(ctx context.Context, _ link.Handler) {
	<-ctx.Done()
}

func (l *fakeLink) Write(cmd frame.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.writes = append(l.writes, byte(cmd))
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	return nil
}

// reconnect runs the registered connect hook as the link would
func (l *fakeLink) reconnect(ctx context.Context) {
	l.onConnect(ctx, l.Write)
}

func (l *fakeLink) failWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

func (l *fakeLink) written() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.writes)
}

// recorder collects notifications
type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) count(title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Title == title {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

// clock is a manually advanced time source
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	engine *Engine
	link   *fakeLink
	store  *memory.Store
	notes  *recorder
	clock  *clock
}

func testOptions(c *clock) Options {
	return Options{
		DeviceID:         testDevice,
		Name:             "Home",
		Latitude:         44.1111,
		Longitude:        11.1111,
		PollInterval:     5 * time.Millisecond,
		LivenessInterval: 5 * time.Millisecond,
		OfflineThreshold: 300 * time.Second,
		Now:              c.now,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		link:  &fakeLink{},
		store: memory.New(),
		notes: &recorder{},
		clock: newClock(),
	}
	h.engine = New(h.link, h.store, h.notes, testOptions(h.clock), zaptest.NewLogger(t))
	return h
}

// seed stores a record in its safe-default state and returns it
func (h *harness) seed(edit func(*store.DeviceRecord)) {
	rec := store.DefaultRecord("Home", 0, 0)
	if edit != nil {
		edit(&rec)
	}
	h.store.SetDevice(testDevice, rec)
}

// remoteEdit simulates a user changing the record from the app
func (h *harness) remoteEdit(edit func(*store.DeviceRecord)) {
	rec, _ := h.store.Device(testDevice)
	edit(&rec)
	h.store.SetDevice(testDevice, rec)
}

func (h *harness) record() store.DeviceRecord {
	rec, _ := h.store.Device(testDevice)
	return rec
}
