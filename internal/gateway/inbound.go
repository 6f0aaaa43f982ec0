// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/store"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// ErrUnknownMessage marks a well-formed payload outside the vocabulary
var ErrUnknownMessage = errors.New("unknown message from controller")

// HandlePacket applies one decoded controller payload. Every call counts as
// a sign of life, whatever the payload.
func (e *Engine) HandlePacket(ctx context.Context, text string) {
	e.logger.Info("packet received", zap.String("payload", text))

	if e.liveness.Touch(e.now()) {
		e.logger.Info("controller back online")
		e.notifier.Notify(ctx, controllerOnline(e.opts.Name))
	}

	switch frame.Classify(text) {
	case frame.MsgDoorOpened:
		e.applyDoorState(ctx, true, false)

	case frame.MsgDoorClosed:
		e.applyDoorState(ctx, false, true)

	case frame.MsgIntrusion:
		e.applyAlarm(ctx, true)
		// Sent even if the record update failed
		e.notifier.Notify(ctx, intrusionAlarm(e.opts.Name))

	case frame.MsgAlarmCleared:
		e.applyAlarm(ctx, false)

	case frame.MsgLockTimeout:
		e.logger.Warn("lock did not re-engage in time")
		e.notifier.Notify(ctx, lockTimeout(e.opts.Name))

	case frame.MsgHeartbeat:
		// liveness only

	default:
		e.logger.Error("unrecognized payload ignored",
			zap.String("payload", text), zap.Error(ErrUnknownMessage))
	}
}

// applyDoorState writes a controller-reported door/lock pair to the record,
// then the mirror, then the access log. The mirror follows the record only
// when the record write succeeded.
func (e *Engine) applyDoorState(ctx context.Context, doorOpen, lockEngaged bool) {
	at := e.now()

	e.mu.Lock()
	err := e.store.UpdateDoorState(ctx, e.opts.DeviceID, store.DoorState{
		DoorOpen:    doorOpen,
		LockEngaged: lockEngaged,
		At:          at,
	})
	if err == nil {
		e.mirror.DoorOpen = doorOpen
		e.mirror.Lock = lockEngaged
		e.mirror.Rev++
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("failed to update door state", zap.Bool("door_open", doorOpen), zap.Error(err))
		return
	}

	action := store.ActionDoorClosed
	if doorOpen {
		action = store.ActionDoorOpened
	}
	e.appendLog(ctx, action, at)
}

func (e *Engine) applyAlarm(ctx context.Context, active bool) {
	at := e.now()

	e.mu.Lock()
	err := e.store.UpdateAlarm(ctx, e.opts.DeviceID, active)
	if err == nil {
		e.mirror.Alarm = active
		e.mirror.Rev++
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("failed to update alarm", zap.Bool("active", active), zap.Error(err))
		return
	}

	action := store.ActionAlarmDeactivated
	if active {
		action = store.ActionAlarmActivated
		e.logger.Warn("alarm activated")
	} else {
		e.logger.Info("alarm deactivated")
	}
	e.appendLog(ctx, action, at)
}

func (e *Engine) appendLog(ctx context.Context, action store.Action, at time.Time) {
	id, err := e.store.AppendAccessLog(ctx, e.opts.DeviceID, store.AccessLogEntry{
		Timestamp: store.FormatTimestamp(at),
		Action:    action,
		At:        at,
	})
	if err != nil {
		e.logger.Error("failed to append access log", zap.String("action", string(action)), zap.Error(err))
		return
	}
	e.logger.Debug("access log appended", zap.String("id", id), zap.String("action", string(action)))
}
