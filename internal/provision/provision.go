// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package provision seeds the remote side: administrator accounts that
// receive alerts, and the device record the gateway reconciles against.
package provision

import (
	"context"
	"net/mail"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/store"
)

// minPasswordLength matches the Firebase Auth lower bound
const minPasswordLength = 6

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrWeakPassword  = errors.New("password must be at least 6 characters")
	ErrMissingDevice = errors.New("device id is required")
)

// UserCreator is the slice of *auth.Client used to register administrators
type UserCreator interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
}

// Provisioner creates administrators and device records
type Provisioner struct {
	users  UserCreator
	store  store.Store
	logger *zap.Logger
}

func New(users UserCreator, s store.Store, logger *zap.Logger) *Provisioner {
	return &Provisioner{users: users, store: s, logger: logger}
}

// CreateAdmin registers an auth user and writes its admin document. The
// returned Admin carries the new UID. Devices may be empty.
func (p *Provisioner) CreateAdmin(ctx context.Context, email, password string, devices []string) (store.Admin, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return store.Admin{}, errors.Wrapf(ErrInvalidEmail, "%q", email)
	}
	if len(password) < minPasswordLength {
		return store.Admin{}, ErrWeakPassword
	}
	if p.users == nil {
		return store.Admin{}, errors.New("no auth client configured")
	}

	user, err := p.users.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		return store.Admin{}, errors.Wrap(err, "failed to create auth user")
	}

	if devices == nil {
		devices = []string{}
	}
	admin := store.Admin{
		UID:       user.UID,
		Email:     email,
		Role:      store.RoleAdmin,
		Devices:   devices,
		FCMTokens: []string{},
	}
	if err := p.store.PutAdmin(ctx, admin); err != nil {
		return store.Admin{}, errors.Wrapf(err, "auth user %s created but admin document failed", user.UID)
	}

	p.logger.Info("admin created", zap.String("uid", admin.UID), zap.String("email", admin.Email))
	return admin, nil
}

// EnsureDevice creates the device record with safe defaults when absent.
// Returns true if a record was created. An existing record is left alone.
func (p *Provisioner) EnsureDevice(ctx context.Context, deviceID, name string, lat, lng float64) (bool, error) {
	if strings.TrimSpace(deviceID) == "" {
		return false, ErrMissingDevice
	}

	_, err := p.store.GetDevice(ctx, deviceID)
	if err == nil {
		p.logger.Info("device record already exists", zap.String("device", deviceID))
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, errors.Wrap(err, "failed to read device record")
	}

	if err := p.store.CreateDevice(ctx, deviceID, store.DefaultRecord(name, lat, lng)); err != nil {
		return false, errors.Wrap(err, "failed to create device record")
	}
	p.logger.Info("device record created", zap.String("device", deviceID), zap.String("name", name))
	return true, nil
}
