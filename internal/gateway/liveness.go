// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Liveness tracks time since the last decoded packet. Offline is entered by
// Check and left only by Touch; each episode reports exactly one transition
// in each direction.
type Liveness struct {
	mu              sync.Mutex
	threshold       time.Duration
	lastPacket      time.Time
	offlineNotified bool
}

// NewLiveness starts the clock at now
func NewLiveness(threshold time.Duration, now time.Time) *Liveness {
	return &Liveness{
		threshold:  threshold,
		lastPacket: now,
	}
}

// Touch records a packet. Returns true if this ended an offline episode.
func (l *Liveness) Touch(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastPacket = now
	if l.offlineNotified {
		l.offlineNotified = false
		return true
	}
	return false
}

// Check returns true once when silence first exceeds the threshold
func (l *Liveness) Check(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.offlineNotified {
		return false
	}
	if now.Sub(l.lastPacket) > l.threshold {
		l.offlineNotified = true
		return true
	}
	return false
}

// Offline reports whether an offline episode is active
func (l *Liveness) Offline() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offlineNotified
}

// LastPacket returns the time of the last decoded packet
func (l *Liveness) LastPacket() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastPacket
}

// CheckLiveness raises the offline alert when the controller has been silent
// past the threshold
func (e *Engine) CheckLiveness(ctx context.Context) {
	now := e.now()
	if !e.liveness.Check(now) {
		return
	}

	e.logger.Warn("no packets from controller, possibly offline",
		zap.Duration("silence", now.Sub(e.liveness.LastPacket())))
	e.notifier.Notify(ctx, controllerOffline(e.opts.Name, e.opts.OfflineThreshold))
}
