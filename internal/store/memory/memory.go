// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package memory is an in-process Store for tests and bench runs without
// Firebase credentials.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Thermoquad/doorbridge/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	devices map[string]store.DeviceRecord
	logs    map[string][]store.AccessLogEntry
	admins  map[string]store.Admin

	// failNext makes the next N calls return err. Test-only.
	failNext int
	failErr  error
	calls    int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		devices: make(map[string]store.DeviceRecord),
		logs:    make(map[string][]store.AccessLogEntry),
		admins:  make(map[string]store.Admin),
	}
}

// FailNext makes the next n store calls fail with err
func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failErr = err
}

// Calls returns the number of store operations performed
func (s *Store) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// fail must be called with s.mu held for writing
func (s *Store) fail() error {
	s.calls++
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}
	return nil
}

func (s *Store) GetDevice(_ context.Context, deviceID string) (store.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return store.DeviceRecord{}, err
	}
	rec, ok := s.devices[deviceID]
	if !ok {
		return store.DeviceRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Store) CreateDevice(_ context.Context, deviceID string, rec store.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	s.devices[deviceID] = rec
	return nil
}

func (s *Store) UpdateLocation(_ context.Context, deviceID string, lat, lng float64) error {
	return s.update(deviceID, func(rec *store.DeviceRecord) {
		rec.Latitude = lat
		rec.Longitude = lng
	})
}

func (s *Store) UpdateDoorState(_ context.Context, deviceID string, st store.DoorState) error {
	return s.update(deviceID, func(rec *store.DeviceRecord) {
		rec.DoorOpen = st.DoorOpen
		rec.LockEngaged = st.LockEngaged
		rec.LastAccess = store.FormatTimestamp(st.At)
	})
}

func (s *Store) UpdateAlarm(_ context.Context, deviceID string, active bool) error {
	return s.update(deviceID, func(rec *store.DeviceRecord) {
		rec.AlarmActive = active
	})
}

func (s *Store) update(deviceID string, fn func(*store.DeviceRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	rec, ok := s.devices[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	fn(&rec)
	s.devices[deviceID] = rec
	return nil
}

func (s *Store) AppendAccessLog(_ context.Context, deviceID string, entry store.AccessLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return "", err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.logs[deviceID] = append(s.logs[deviceID], entry)
	return entry.ID, nil
}

func (s *Store) ListAdmins(_ context.Context) ([]store.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	out := make([]store.Admin, 0, len(s.admins))
	for _, a := range s.admins {
		if a.Role == store.RoleAdmin {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (s *Store) PutAdmin(_ context.Context, admin store.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	s.admins[admin.UID] = admin
	return nil
}

// Device returns the current record without counting as a call. Test-only helper.
func (s *Store) Device(deviceID string) (store.DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[deviceID]
	return rec, ok
}

// SetDevice overwrites a record, simulating a remote edit. Test-only helper.
func (s *Store) SetDevice(deviceID string, rec store.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[deviceID] = rec
}

// AccessLog returns a copy of the device's log entries. Test-only helper.
func (s *Store) AccessLog(deviceID string) []store.AccessLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AccessLogEntry, len(s.logs[deviceID]))
	copy(out, s.logs[deviceID])
	return out
}
