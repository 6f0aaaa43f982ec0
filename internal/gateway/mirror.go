// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

// Mirror is the engine's last-known view of lock, door and alarm state. It is
// a diffing baseline only, never authoritative.
type Mirror struct {
	Lock     bool
	DoorOpen bool
	Alarm    bool

	// Rev increases on every change not made by the poller. A poll that read
	// the remote record at an older revision is discarded.
	Rev uint64
}

// DefaultMirror matches the controller's power-on state
func DefaultMirror() Mirror {
	return Mirror{Lock: true}
}
