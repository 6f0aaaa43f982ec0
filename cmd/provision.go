// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/doorbridge/internal/cloud"
	"github.com/Thermoquad/doorbridge/internal/config"
	"github.com/Thermoquad/doorbridge/internal/provision"
	"github.com/Thermoquad/doorbridge/internal/store/firestore"
)

// adminPasswordEnv supplies the new administrator's password non-interactively
const adminPasswordEnv = "DOORBRIDGE_ADMIN_PASSWORD"

var (
	adminEmail    string
	adminPassword string
	adminDevices  []string
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Seed administrators and device records",
}

var provisionAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create an administrator account",
	Long: `Create a Firebase Auth user and its administrator document.

Administrators receive the gateway's push notifications once the app has
registered a device token for them.

The password is taken from --password, the DOORBRIDGE_ADMIN_PASSWORD
environment variable, or an interactive prompt, in that order.`,
	RunE: runProvisionAdmin,
}

var provisionDeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Create the device record if it does not exist",
	Long: `Create the configured device's remote record with safe defaults:
locked, door closed, alarm off, never accessed.

An existing record is left untouched. The gateway also does this on its
first connect; this command lets the app see the device before then.`,
	RunE: runProvisionDevice,
}

func init() {
	rootCmd.AddCommand(provisionCmd)
	provisionCmd.AddCommand(provisionAdminCmd)
	provisionCmd.AddCommand(provisionDeviceCmd)

	provisionAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Administrator email")
	provisionAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password")
	provisionAdminCmd.Flags().StringSliceVar(&adminDevices, "device", nil, "Device IDs the administrator manages (repeatable)")
	provisionAdminCmd.MarkFlagRequired("email")
}

// newProvisioner connects to Firebase with the configured credentials
func newProvisioner(ctx context.Context, cfg *config.Config, withAuth bool) (*provision.Provisioner, func(), error) {
	if err := cfg.ValidateRemote(); err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	app, err := cloud.NewApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := firestore.New(ctx, app, cfg.Store.Timeout)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		st.Close()
		logger.Sync()
	}

	var users provision.UserCreator
	if withAuth {
		client, err := app.Auth(ctx)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "failed to get auth client")
		}
		users = client
	}

	return provision.New(users, st, logger.Named("provision")), cleanup, nil
}

func readAdminPassword() (string, error) {
	if adminPassword != "" {
		return adminPassword, nil
	}
	if pw := os.Getenv(adminPasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "New administrator password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}
	return strings.TrimSpace(string(pw)), nil
}

func runProvisionAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	password, err := readAdminPassword()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, cleanup, err := newProvisioner(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	admin, err := p.CreateAdmin(ctx, adminEmail, password, adminDevices)
	if err != nil {
		return err
	}

	fmt.Printf("Administrator created\n")
	fmt.Printf("  UID:     %s\n", admin.UID)
	fmt.Printf("  Email:   %s\n", admin.Email)
	if len(admin.Devices) > 0 {
		fmt.Printf("  Devices: %s\n", strings.Join(admin.Devices, ", "))
	}
	return nil
}

func runProvisionDevice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Device.ID) == "" {
		return provision.ErrMissingDevice
	}

	ctx := context.Background()
	p, cleanup, err := newProvisioner(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	name := cfg.Device.Name
	if name == "" {
		name = cfg.Device.ID
	}
	created, err := p.EnsureDevice(ctx, cfg.Device.ID, name, cfg.Device.Latitude, cfg.Device.Longitude)
	if err != nil {
		return err
	}

	if created {
		fmt.Printf("Device %s created with safe defaults\n", cfg.Device.ID)
	} else {
		fmt.Printf("Device %s already exists, left unchanged\n", cfg.Device.ID)
	}
	return nil
}
