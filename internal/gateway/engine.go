// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway is the state-synchronization engine between the door
// controller and its remote device record.
//
// Three loops share one Engine: the link read loop (controller → remote),
// the remote poll (remote → controller) and the liveness check. The engine
// mutex covers the mirror and every serial write, so a write and the mirror
// update it implies are one step relative to the other loops.
package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/internal/notify"
	"github.com/Thermoquad/doorbridge/internal/store"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// shutdownTimeout bounds the final notification after the run context ends
const shutdownTimeout = 10 * time.Second

// Link is the controller connection as the engine uses it
type Link interface {
	OnConnect(fn link.ConnectHook)
	Run(ctx context.Context, handle link.Handler)
	Write(cmd frame.Command) error
	Close() error
}

// RemoteStore is the subset of the remote store the engine touches
type RemoteStore interface {
	store.DeviceStore
	store.AccessLogStore
}

// Options configures an Engine
type Options struct {
	DeviceID  string
	Name      string
	Latitude  float64
	Longitude float64

	PollInterval     time.Duration
	LivenessInterval time.Duration
	OfflineThreshold time.Duration

	// Now defaults to time.Now
	Now func() time.Time
}

// Engine reconciles controller state with the remote record
type Engine struct {
	opts     Options
	link     Link
	store    RemoteStore
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	mirror Mirror

	liveness *Liveness
}

// New creates an engine and registers its startup sync on the link. Call it
// before opening the link.
func New(l Link, s RemoteStore, n notify.Notifier, opts Options, logger *zap.Logger) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		opts:     opts,
		link:     l,
		store:    s,
		notifier: n,
		logger:   logger.With(zap.String("device", opts.DeviceID)),
		now:      now,
		mirror:   DefaultMirror(),
		liveness: NewLiveness(opts.OfflineThreshold, now()),
	}
	l.OnConnect(e.sync)
	return e
}

// Mirror returns a snapshot of the local mirror
func (e *Engine) Mirror() Mirror {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mirror
}

// Liveness exposes the liveness monitor
func (e *Engine) Liveness() *Liveness {
	return e.liveness
}

// Run drives the read loop, the remote poll and the liveness check until ctx
// is cancelled, then closes the link and announces the shutdown.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		e.link.Run(ctx, e.HandlePacket)
	}()
	go func() {
		defer wg.Done()
		e.every(ctx, e.opts.PollInterval, true, e.Poll)
	}()
	go func() {
		defer wg.Done()
		e.every(ctx, e.opts.LivenessInterval, false, e.CheckLiveness)
	}()

	wg.Wait()
	e.shutdown()
}

// every runs fn on a fixed interval until ctx ends
func (e *Engine) every(ctx context.Context, interval time.Duration, immediate bool, fn func(context.Context)) {
	if immediate {
		fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (e *Engine) shutdown() {
	if err := e.link.Close(); err != nil {
		e.logger.Warn("error closing link", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	e.notifier.Notify(ctx, bridgeStopped(e.opts.Name))
	e.logger.Info("bridge stopped")
}

// write sends cmd to the controller. Callers hold e.mu.
func (e *Engine) write(cmd frame.Command) error {
	return e.send(e.link.Write, cmd)
}

func (e *Engine) send(write func(frame.Command) error, cmd frame.Command) error {
	if err := write(cmd); err != nil {
		e.logger.Error("command write failed", zap.Stringer("command", cmd), zap.Error(err))
		return err
	}
	e.logger.Info("command sent", zap.Stringer("command", cmd))
	return nil
}
