// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/store"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// Sync aligns the controller with the remote record. The link runs it after
// each (re)connect. The controller powers up locked, door closed, alarm off;
// only the fields a user may have changed while it was down are pushed.
func (e *Engine) Sync(ctx context.Context) {
	e.sync(ctx, e.link.Write)
}

func (e *Engine) sync(ctx context.Context, write func(frame.Command) error) {
	rec, err := e.store.GetDevice(ctx, e.opts.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		e.createRecord(ctx)
		return
	}
	if err != nil {
		e.logger.Error("sync: error reading remote record", zap.Error(err))
		return
	}

	if err := e.store.UpdateLocation(ctx, e.opts.DeviceID, e.opts.Latitude, e.opts.Longitude); err != nil {
		e.logger.Error("sync: failed to refresh location", zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The controller just (re)started; door state from before the disconnect
	// no longer applies
	e.mirror = Mirror{Lock: true, Rev: e.mirror.Rev + 1}

	if !rec.LockEngaged {
		e.logger.Info("sync: remote says lock=false, unlocking controller")
		if e.send(write, frame.CommandUnlock) == nil {
			e.mirror.Lock = false
			e.mirror.Rev++
		}
	}
	if rec.AlarmActive {
		e.logger.Info("sync: remote says alarm=true, arming controller")
		if e.send(write, frame.CommandArm) == nil {
			e.mirror.Alarm = true
			e.mirror.Rev++
		}
	}

	e.logger.Info("sync completed",
		zap.Bool("lock", e.mirror.Lock), zap.Bool("alarm", e.mirror.Alarm))
}

func (e *Engine) createRecord(ctx context.Context) {
	e.logger.Warn("sync: no remote document for this device, creating it with defaults")

	rec := store.DefaultRecord(e.opts.Name, e.opts.Latitude, e.opts.Longitude)
	if err := e.store.CreateDevice(ctx, e.opts.DeviceID, rec); err != nil {
		e.logger.Error("sync: failed to create device record", zap.Error(err))
		return
	}

	e.mu.Lock()
	e.mirror = Mirror{Lock: true, Rev: e.mirror.Rev + 1}
	e.mu.Unlock()

	e.logger.Info("device initialized in remote store", zap.String("name", e.opts.Name))
}
