// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cloud bootstraps the Firebase app shared by the Firestore store,
// the FCM sender, and provisioning.
package cloud

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// NewApp initializes a Firebase app from a service account file. An empty
// projectID lets the SDK take it from the credentials.
func NewApp(ctx context.Context, projectID, credentialsPath string) (*firebase.App, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}
	return app, nil
}
