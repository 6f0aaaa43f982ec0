// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package notify

import (
	"context"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
)

// FCMSender sends through Firebase Cloud Messaging
type FCMSender struct {
	client  *messaging.Client
	timeout time.Duration
}

var _ Sender = (*FCMSender)(nil)

// NewFCMSender creates a sender from the Firebase app. Each send is bounded
// by timeout.
func NewFCMSender(ctx context.Context, app *firebase.App, timeout time.Duration) (*FCMSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}
	return &FCMSender{client: client, timeout: timeout}, nil
}

// Send sends a push notification to a single device token
func (s *FCMSender) Send(ctx context.Context, token string, n Notification) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: map[string]string{"level": string(n.Level)},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		if messaging.IsUnregistered(err) {
			return errors.Wrap(err, "token unregistered")
		}
		return errors.Wrap(err, "failed to send notification")
	}
	return nil
}
