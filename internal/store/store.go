// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store defines the remote device-state record and the operations
// the gateway performs on it.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the device record does not exist
var ErrNotFound = errors.New("device record not found")

// NeverAccessed is the last_access value of a record that has never seen a
// door event
const NeverAccessed = "Never"

// Action is the access log verb. Values match what deployed app clients read.
type Action string

const (
	ActionDoorOpened       Action = "porta aperta"
	ActionDoorClosed       Action = "porta chiusa"
	ActionAlarmActivated   Action = "allarme_on"
	ActionAlarmDeactivated Action = "allarme_off"
)

// RoleAdmin marks a user document whose tokens receive gateway alerts
const RoleAdmin = "admin"

// DeviceRecord is the remote document for one controller
type DeviceRecord struct {
	Name        string  `firestore:"name"`
	LockEngaged bool    `firestore:"lock"`
	DoorOpen    bool    `firestore:"porta_aperta"`
	AlarmActive bool    `firestore:"allarme"`
	Latitude    float64 `firestore:"latitude"`
	Longitude   float64 `firestore:"longitude"`
	LastAccess  string  `firestore:"last_access"`
}

// DefaultRecord returns the safe-default record: locked, door closed, alarm off
func DefaultRecord(name string, lat, lng float64) DeviceRecord {
	return DeviceRecord{
		Name:        name,
		LockEngaged: true,
		Latitude:    lat,
		Longitude:   lng,
		LastAccess:  NeverAccessed,
	}
}

// DoorState is the controller-reported door/lock pair written on each
// door event
type DoorState struct {
	DoorOpen    bool
	LockEngaged bool
	At          time.Time
}

// AccessLogEntry is one append-only access log row. UserID is nil for
// controller-driven entries.
type AccessLogEntry struct {
	ID        string    `firestore:"-"`
	Timestamp string    `firestore:"timestamp"`
	Action    Action    `firestore:"action"`
	UserID    *string   `firestore:"user_id"`
	At        time.Time `firestore:"-"`
}

// Admin is an administrator principal with its push endpoints
type Admin struct {
	UID       string   `firestore:"-"`
	Email     string   `firestore:"email"`
	Role      string   `firestore:"role"`
	Devices   []string `firestore:"devices"`
	FCMTokens []string `firestore:"fcm_tokens"`
}

// DeviceStore reads and writes the device record
type DeviceStore interface {
	// GetDevice returns ErrNotFound when the record is absent
	GetDevice(ctx context.Context, deviceID string) (DeviceRecord, error)
	CreateDevice(ctx context.Context, deviceID string, rec DeviceRecord) error
	UpdateLocation(ctx context.Context, deviceID string, lat, lng float64) error
	UpdateDoorState(ctx context.Context, deviceID string, st DoorState) error
	UpdateAlarm(ctx context.Context, deviceID string, active bool) error
}

// AccessLogStore appends access events beneath a device record
type AccessLogStore interface {
	AppendAccessLog(ctx context.Context, deviceID string, entry AccessLogEntry) (string, error)
}

// AdminStore lists administrators and provisions new ones
type AdminStore interface {
	ListAdmins(ctx context.Context) ([]Admin, error)
	PutAdmin(ctx context.Context, admin Admin) error
}

// Store is everything the gateway needs from the remote side
type Store interface {
	DeviceStore
	AccessLogStore
	AdminStore
}

// FormatTimestamp renders a timestamp the way access log and last_access
// fields store it
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}
