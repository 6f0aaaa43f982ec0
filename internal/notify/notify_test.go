// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/doorbridge/internal/store"
	"github.com/Thermoquad/doorbridge/internal/store/memory"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, token string, n Notification) error {
	args := m.Called(ctx, token, n)
	return args.Error(0)
}

func seedAdmins(t *testing.T, ms *memory.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ms.PutAdmin(ctx, store.Admin{UID: "a", Role: store.RoleAdmin, FCMTokens: []string{"tok-1", "tok-2"}}))
	require.NoError(t, ms.PutAdmin(ctx, store.Admin{UID: "b", Role: store.RoleAdmin, FCMTokens: []string{"tok-2", "", "tok-3"}}))
	require.NoError(t, ms.PutAdmin(ctx, store.Admin{UID: "c", Role: "viewer", FCMTokens: []string{"tok-4"}}))
}

func TestAdminNotifier_FansOutToAdminTokens(t *testing.T) {
	ms := memory.New()
	seedAdmins(t, ms)
	ctx := context.Background()
	n := Notification{Title: "Intrusion Alarm!", Body: "Intrusion detected on Home!", Level: LevelCritical}

	sender := &mockSender{}
	sender.On("Send", ctx, "tok-1", n).Return(nil).Once()
	sender.On("Send", ctx, "tok-2", n).Return(nil).Once()
	sender.On("Send", ctx, "tok-3", n).Return(nil).Once()

	notifier := NewAdminNotifier(ms, sender, zaptest.NewLogger(t))
	sent, failed, err := notifier.Deliver(ctx, n)

	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 0, failed)
	sender.AssertExpectations(t)
	sender.AssertNotCalled(t, "Send", ctx, "tok-4", n)
}

func TestAdminNotifier_FailingTokenDoesNotStopBatch(t *testing.T) {
	ms := memory.New()
	seedAdmins(t, ms)
	ctx := context.Background()
	n := Notification{Title: "t", Body: "b", Level: LevelInfo}

	sender := &mockSender{}
	sender.On("Send", ctx, "tok-1", n).Return(errors.New("unregistered")).Once()
	sender.On("Send", ctx, "tok-2", n).Return(nil).Once()
	sender.On("Send", ctx, "tok-3", n).Return(nil).Once()

	notifier := NewAdminNotifier(ms, sender, zaptest.NewLogger(t))
	sent, failed, err := notifier.Deliver(ctx, n)

	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	sender.AssertExpectations(t)
}

func TestAdminNotifier_NoTokens(t *testing.T) {
	ms := memory.New()
	sender := &mockSender{}

	notifier := NewAdminNotifier(ms, sender, zaptest.NewLogger(t))
	sent, failed, err := notifier.Deliver(context.Background(), Notification{Title: "t"})

	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, failed)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminNotifier_AdminListFailure(t *testing.T) {
	ms := memory.New()
	seedAdmins(t, ms)
	ms.FailNext(1, errors.New("deadline exceeded"))
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	notifier := NewAdminNotifier(ms, sender, zaptest.NewLogger(t))
	notifier.Notify(context.Background(), Notification{Title: "t"})

	_, _, err := notifier.Deliver(context.Background(), Notification{Title: "t"})
	assert.NoError(t, err, "failure is confined to the call that hit it")
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zaptest.NewLogger(t))
	assert.NoError(t, s.Send(context.Background(), "abcdefghijkl", Notification{Title: "t", Body: "b"}))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "short", redact("short"))
	assert.Equal(t, "abcdefgh…", redact("abcdefghijkl"))
}
