// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/notify"
	"github.com/Thermoquad/doorbridge/internal/store"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// Poll reads the remote record once and pushes user-initiated changes to the
// controller. A failed read abandons the cycle; the next tick retries.
func (e *Engine) Poll(ctx context.Context) {
	rev := e.Mirror().Rev

	rec, err := e.store.GetDevice(ctx, e.opts.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("no remote document found for this device")
		return
	}
	if err != nil {
		e.logger.Error("error reading remote record", zap.Error(err))
		return
	}

	var pending []notify.Notification

	e.mu.Lock()
	if e.mirror.Rev != rev {
		// An inbound packet changed the mirror after we read the record
		e.mu.Unlock()
		e.logger.Debug("mirror changed during poll, deferring to next cycle")
		return
	}

	if rec.LockEngaged != e.mirror.Lock {
		pending = append(pending, e.reconcileLock(rec.LockEngaged)...)
	}

	switch {
	case e.mirror.Alarm && !rec.AlarmActive:
		e.logger.Info("alarm deactivated remotely")
		if e.write(frame.CommandDisarm) == nil {
			e.mirror.Alarm = false
		}
	case !e.mirror.Alarm && rec.AlarmActive:
		// Activation is controller-authoritative; only track it
		e.mirror.Alarm = true
	}
	e.mu.Unlock()

	for _, n := range pending {
		e.notifier.Notify(ctx, n)
	}
}

// reconcileLock pushes a remote lock change. Callers hold e.mu. A remote lock
// request is held back while the controller reports the door open.
func (e *Engine) reconcileLock(want bool) []notify.Notification {
	if want && e.mirror.DoorOpen {
		e.logger.Debug("lock request deferred until the door is reported closed")
		return nil
	}

	cmd := frame.CommandLock
	if !want {
		cmd = frame.CommandUnlock
	}
	if err := e.write(cmd); err != nil {
		// Mirror unchanged so the next poll retries
		return nil
	}
	e.mirror.Lock = want

	if !want {
		return []notify.Notification{unlockedByUser(e.opts.Name)}
	}
	return nil
}
