// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"

	"github.com/Thermoquad/doorbridge/internal/config"
	"github.com/Thermoquad/doorbridge/internal/link"
)

var errNoEndpoint = errors.New("either --port or --url must be specified")

// endpoint builds the link endpoint from config, prompting for the
// WebSocket password when a username is set
func endpoint(cfg *config.Config) (link.Endpoint, error) {
	ep := link.Endpoint{
		Port:        cfg.Serial.Port,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
		URL:         cfg.WebSocket.URL,
		Username:    cfg.WebSocket.Username,
		Insecure:    cfg.WebSocket.Insecure,
	}
	if ep.Port == "" && ep.URL == "" {
		return ep, errNoEndpoint
	}

	if ep.URL != "" && ep.Username != "" {
		password, err := link.GetPassword()
		if err != nil {
			return ep, err
		}
		ep.Password = password
	}
	return ep, nil
}

// openConnection opens either a serial or WebSocket connection based on config
func openConnection(ctx context.Context, cfg *config.Config) (link.Conn, string, error) {
	ep, err := endpoint(cfg)
	if err != nil {
		return nil, "", err
	}
	return link.NewDialer(ep)(ctx)
}
