// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/doorbridge/internal/config"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOORBRIDGE_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("DOORBRIDGE_LOG_LEVEL", "warn")

	require.NoError(t, rootCmd.ParseFlags([]string{"--port", "/dev/ttyUSB1", "--baud", "19200"}))
	t.Cleanup(func() {
		rootCmd.Flags().Set("port", "")
		rootCmd.Flags().Set("baud", "9600")
	})

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, "warn", cfg.Log.Level, "unset flags leave env values alone")
}

func TestEndpoint(t *testing.T) {
	_, err := endpoint(&config.Config{})
	assert.ErrorIs(t, err, errNoEndpoint)

	ep, err := endpoint(&config.Config{Serial: config.SerialConfig{Port: "/dev/ttyUSB0", Baud: 9600}})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", ep.Port)
	assert.Empty(t, ep.Password)
}

func TestFormatMonitorLine(t *testing.T) {
	line := formatMonitorLine(frame.NewFrame([]byte("EFF")), false)
	assert.Contains(t, line, "INTRUSION")
	assert.Contains(t, line, `"EFF"`)

	line = formatMonitorLine(frame.NewFrame([]byte{0xC3, 0x28}), false)
	assert.Contains(t, line, "MALFORMED")
	assert.Contains(t, line, "C3 28")

	line = formatMonitorLine(frame.NewFrame([]byte("HB")), true)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "48 42")
}
