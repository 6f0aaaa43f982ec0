// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the log instead of sending them.
// Used for --dry-notify runs.
type LogSender struct {
	logger *zap.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, token string, n Notification) error {
	s.logger.Info("dry-run notification",
		zap.String("token", redact(token)),
		zap.String("level", string(n.Level)),
		zap.String("title", n.Title),
		zap.String("body", n.Body))
	return nil
}
