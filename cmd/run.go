// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/doorbridge/internal/cloud"
	"github.com/Thermoquad/doorbridge/internal/gateway"
	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/internal/notify"
	"github.com/Thermoquad/doorbridge/internal/store/firestore"
)

var dryNotify bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway",
	Long: `Run the gateway until interrupted.

Opens the controller link, synchronizes it with the remote device record and
then keeps both sides in step:
  - door and alarm events from the controller update the record and access log
  - lock and alarm changes made in the app are sent to the controller
  - administrators are notified of intrusions, lock timeouts, and the
    controller going offline or coming back

Failure to open the link at startup is fatal. After that the link is
reopened indefinitely.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&dryNotify, "dry-notify", false, "Log notifications instead of sending them")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dryNotify {
		cfg.Notify.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateRemote(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cloud.NewApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		return err
	}

	st, err := firestore.New(ctx, app, cfg.Store.Timeout)
	if err != nil {
		return err
	}
	defer st.Close()

	var sender notify.Sender
	if cfg.Notify.DryRun {
		sender = notify.NewLogSender(logger.Named("notify"))
	} else {
		fcm, err := notify.NewFCMSender(ctx, app, cfg.Notify.SendTimeout)
		if err != nil {
			return err
		}
		sender = fcm
	}
	notifier := notify.NewAdminNotifier(st, sender, logger.Named("notify"))

	ep, err := endpoint(cfg)
	if err != nil {
		return err
	}
	mgr := link.NewManager(link.NewDialer(ep), link.Config{
		SettleDelay:      cfg.Timing.SettleDelay,
		ReconnectBackoff: cfg.Timing.ReconnectBackoff,
	}, logger.Named("link"))

	name := cfg.Device.Name
	if name == "" {
		name = cfg.Device.ID
	}
	engine := gateway.New(mgr, st, notifier, gateway.Options{
		DeviceID:         cfg.Device.ID,
		Name:             name,
		Latitude:         cfg.Device.Latitude,
		Longitude:        cfg.Device.Longitude,
		PollInterval:     cfg.Timing.PollInterval,
		LivenessInterval: cfg.Timing.LivenessInterval,
		OfflineThreshold: cfg.Timing.OfflineThreshold,
	}, logger.Named("gateway"))

	if err := mgr.Open(ctx); err != nil {
		return errors.Wrap(err, "failed to open controller link")
	}
	logger.Info("bridge started",
		zap.String("device", cfg.Device.ID), zap.String("conn", mgr.ConnInfo()))

	engine.Run(ctx)

	stats := mgr.Stats()
	stats.CalculateRates()
	logger.Info("link statistics",
		zap.Uint64("frames", stats.TotalFrames),
		zap.Uint64("valid", stats.ValidFrames),
		zap.Uint64("errors", stats.Errors()),
		zap.Uint64("unknown", stats.UnknownMessages),
		zap.Uint64("discarded_bytes", stats.DiscardedBytes))
	return nil
}
