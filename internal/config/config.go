// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads gateway configuration from defaults, an optional YAML
// file, and DOORBRIDGE_* environment variables, in that order.
package config

import (
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultPath is read when no --config flag is given and the file exists
	DefaultPath = "doorbridge.yaml"

	// EnvPrefix namespaces environment overrides, e.g. DOORBRIDGE_SERIAL_PORT
	EnvPrefix = "DOORBRIDGE_"
)

type Config struct {
	Device    DeviceConfig    `koanf:"device"`
	Serial    SerialConfig    `koanf:"serial"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Firebase  FirebaseConfig  `koanf:"firebase"`
	Timing    TimingConfig    `koanf:"timing"`
	Store     StoreConfig     `koanf:"store"`
	Notify    NotifyConfig    `koanf:"notify"`
	Log       LogConfig       `koanf:"log"`
}

// DeviceConfig identifies the controller's remote record. Name and location
// are pushed to the record on every sync.
type DeviceConfig struct {
	ID        string  `koanf:"id"`
	Name      string  `koanf:"name"`
	Latitude  float64 `koanf:"latitude"`
	Longitude float64 `koanf:"longitude"`
}

type SerialConfig struct {
	Port        string        `koanf:"port"`
	Baud        int           `koanf:"baud"`
	ReadTimeout time.Duration `koanf:"readTimeout"`
}

// WebSocketConfig selects a network serial bridge instead of a local port.
// The password comes from DOORBRIDGE_LINK_PASSWORD or an interactive prompt.
type WebSocketConfig struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Insecure bool   `koanf:"insecure"`
}

type FirebaseConfig struct {
	ProjectID       string `koanf:"projectId"`
	CredentialsPath string `koanf:"credentialsPath"`
}

// TimingConfig holds the engine cadences. Defaults are the deployed values;
// tests shrink them.
type TimingConfig struct {
	PollInterval     time.Duration `koanf:"pollInterval"`
	LivenessInterval time.Duration `koanf:"livenessInterval"`
	OfflineThreshold time.Duration `koanf:"offlineThreshold"`
	SettleDelay      time.Duration `koanf:"settleDelay"`
	ReconnectBackoff time.Duration `koanf:"reconnectBackoff"`
}

type StoreConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

type NotifyConfig struct {
	// DryRun logs notifications instead of sending them through FCM
	DryRun      bool          `koanf:"dryRun"`
	SendTimeout time.Duration `koanf:"sendTimeout"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

var defaults = map[string]any{
	"device.id":                "",
	"device.name":              "",
	"device.latitude":          0.0,
	"device.longitude":         0.0,
	"serial.port":              "",
	"serial.baud":              9600,
	"serial.readTimeout":       time.Second,
	"websocket.url":            "",
	"websocket.username":       "",
	"websocket.insecure":       false,
	"firebase.projectId":       "",
	"firebase.credentialsPath": "",
	"timing.pollInterval":      2 * time.Second,
	"timing.livenessInterval":  60 * time.Second,
	"timing.offlineThreshold":  300 * time.Second,
	"timing.settleDelay":       2 * time.Second,
	"timing.reconnectBackoff":  5 * time.Second,
	"store.timeout":            10 * time.Second,
	"notify.dryRun":            false,
	"notify.sendTimeout":       10 * time.Second,
	"log.level":                "info",
	"log.development":          false,
}

// Load reads configuration. An empty path falls back to DefaultPath when it
// exists; an explicit path that cannot be read is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.Wrapf(err, "set default %s", key)
		}
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return canonicalizeEnvKey(key, existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return cfg, nil
}

// Validate checks the fields every gateway command needs
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.ID) == "" {
		return errors.New("device.id is required")
	}
	if c.Serial.Port == "" && c.WebSocket.URL == "" {
		return errors.New("either serial.port or websocket.url must be set")
	}
	if c.Serial.Baud <= 0 {
		return errors.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	for name, d := range map[string]time.Duration{
		"timing.pollInterval":     c.Timing.PollInterval,
		"timing.livenessInterval": c.Timing.LivenessInterval,
		"timing.offlineThreshold": c.Timing.OfflineThreshold,
		"timing.reconnectBackoff": c.Timing.ReconnectBackoff,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// ValidateRemote checks the fields needed to reach Firebase
func (c *Config) ValidateRemote() error {
	if c.Firebase.CredentialsPath == "" {
		return errors.New("firebase.credentialsPath is required")
	}
	return nil
}

// canonicalizeEnvKey converts SERIAL_READTIMEOUT to serial.readTimeout by
// matching each segment against the keys already loaded.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)
		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
