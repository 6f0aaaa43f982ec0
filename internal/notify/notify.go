// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package notify delivers gateway alerts to every administrator's push
// endpoints.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/store"
)

// Level is carried in the push data payload so clients can style alerts
type Level string

const (
	LevelCritical Level = "critical"
	LevelWarning  Level = "warning"
	LevelInfo     Level = "info"
)

// Notification is a human-readable alert
type Notification struct {
	Title string
	Body  string
	Level Level
}

// Notifier is the engine's view of the alert channel. Implementations never
// return delivery errors; they log them.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Sender performs one delivery attempt to one push endpoint
type Sender interface {
	Send(ctx context.Context, token string, n Notification) error
}

// AdminNotifier fans a notification out to the tokens of every admin user
type AdminNotifier struct {
	admins store.AdminStore
	sender Sender
	logger *zap.Logger
}

var _ Notifier = (*AdminNotifier)(nil)

// NewAdminNotifier creates a notifier that resolves tokens on every send, so
// tokens registered while the gateway runs are picked up.
func NewAdminNotifier(admins store.AdminStore, sender Sender, logger *zap.Logger) *AdminNotifier {
	return &AdminNotifier{
		admins: admins,
		sender: sender,
		logger: logger,
	}
}

// Notify delivers n, logging any failure
func (a *AdminNotifier) Notify(ctx context.Context, n Notification) {
	_, _, _ = a.Deliver(ctx, n)
}

// Deliver sends n to each admin token once. A failing token is logged and
// does not stop the rest of the batch. err is only set when the admin list
// itself could not be read.
func (a *AdminNotifier) Deliver(ctx context.Context, n Notification) (sent, failed int, err error) {
	admins, err := a.admins.ListAdmins(ctx)
	if err != nil {
		a.logger.Error("failed to list admins for notification",
			zap.String("title", n.Title), zap.Error(err))
		return 0, 0, err
	}

	tokens := collectTokens(admins)
	if len(tokens) == 0 {
		a.logger.Warn("no FCM tokens found for admins", zap.String("title", n.Title))
		return 0, 0, nil
	}

	for _, token := range tokens {
		if err := a.sender.Send(ctx, token, n); err != nil {
			failed++
			a.logger.Error("error sending notification",
				zap.String("token", redact(token)), zap.String("title", n.Title), zap.Error(err))
			continue
		}
		sent++
		a.logger.Info("notification sent",
			zap.String("token", redact(token)), zap.String("title", n.Title))
	}
	return sent, failed, nil
}

// collectTokens flattens admin tokens, dropping blanks and duplicates while
// keeping first-seen order
func collectTokens(admins []store.Admin) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, admin := range admins {
		for _, t := range admin.FCMTokens {
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// redact keeps enough of a token to correlate log lines
func redact(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
