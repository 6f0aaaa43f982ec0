// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package firestore implements store.Store on Cloud Firestore.
//
// Layout:
//
//	devices/{deviceID}                      device record
//	devices/{deviceID}/access_logs/{uuid}   access log entries
//	users/{uid}                             administrators (role == "admin")
package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Thermoquad/doorbridge/internal/store"
)

const (
	devicesCollection    = "devices"
	accessLogsCollection = "access_logs"
	usersCollection      = "users"
)

type Store struct {
	client  *firestore.Client
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// New opens a Firestore client from the Firebase app. Every call is bounded
// by timeout; zero means the caller's context alone governs.
func New(ctx context.Context, app *firebase.App, timeout time.Duration) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get firestore client")
	}
	return &Store{client: client, timeout: timeout}, nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) device(deviceID string) *firestore.DocumentRef {
	return s.client.Collection(devicesCollection).Doc(deviceID)
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (store.DeviceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	snap, err := s.device(deviceID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return store.DeviceRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.DeviceRecord{}, errors.Wrapf(err, "get device %s", deviceID)
	}
	return recordFromData(snap.Data()), nil
}

// recordFromData reads a device document, filling absent fields with the
// safe defaults rather than Go zero values.
func recordFromData(data map[string]interface{}) store.DeviceRecord {
	rec := store.DefaultRecord("", 0, 0)
	if v, ok := data["name"].(string); ok {
		rec.Name = v
	}
	if v, ok := data["lock"].(bool); ok {
		rec.LockEngaged = v
	}
	if v, ok := data["porta_aperta"].(bool); ok {
		rec.DoorOpen = v
	}
	if v, ok := data["allarme"].(bool); ok {
		rec.AlarmActive = v
	}
	rec.Latitude = number(data["latitude"])
	rec.Longitude = number(data["longitude"])
	if v, ok := data["last_access"].(string); ok {
		rec.LastAccess = v
	}
	return rec
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func (s *Store) CreateDevice(ctx context.Context, deviceID string, rec store.DeviceRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.device(deviceID).Set(ctx, rec); err != nil {
		return errors.Wrapf(err, "create device %s", deviceID)
	}
	return nil
}

func (s *Store) update(ctx context.Context, deviceID string, updates []firestore.Update) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.device(deviceID).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "update device %s", deviceID)
	}
	return nil
}

func (s *Store) UpdateLocation(ctx context.Context, deviceID string, lat, lng float64) error {
	return s.update(ctx, deviceID, []firestore.Update{
		{Path: "latitude", Value: lat},
		{Path: "longitude", Value: lng},
	})
}

func (s *Store) UpdateDoorState(ctx context.Context, deviceID string, st store.DoorState) error {
	return s.update(ctx, deviceID, []firestore.Update{
		{Path: "porta_aperta", Value: st.DoorOpen},
		{Path: "lock", Value: st.LockEngaged},
		{Path: "last_access", Value: store.FormatTimestamp(st.At)},
	})
}

func (s *Store) UpdateAlarm(ctx context.Context, deviceID string, active bool) error {
	return s.update(ctx, deviceID, []firestore.Update{
		{Path: "allarme", Value: active},
	})
}

func (s *Store) AppendAccessLog(ctx context.Context, deviceID string, entry store.AccessLogEntry) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	ref := s.device(deviceID).Collection(accessLogsCollection).Doc(entry.ID)
	if _, err := ref.Create(ctx, entry); err != nil {
		return "", errors.Wrapf(err, "append access log for %s", deviceID)
	}
	return entry.ID, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]store.Admin, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	iter := s.client.Collection(usersCollection).Where("role", "==", store.RoleAdmin).Documents(ctx)
	defer iter.Stop()

	var admins []store.Admin
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "list admins")
		}

		var admin store.Admin
		if err := doc.DataTo(&admin); err != nil {
			return nil, errors.Wrapf(err, "decode user %s", doc.Ref.ID)
		}
		admin.UID = doc.Ref.ID
		admins = append(admins, admin)
	}
	return admins, nil
}

func (s *Store) PutAdmin(ctx context.Context, admin store.Admin) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if admin.Devices == nil {
		admin.Devices = []string{}
	}
	if admin.FCMTokens == nil {
		admin.FCMTokens = []string{}
	}
	if _, err := s.client.Collection(usersCollection).Doc(admin.UID).Set(ctx, admin); err != nil {
		return errors.Wrapf(err, "put admin %s", admin.UID)
	}
	return nil
}
