// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"
	"time"

	"github.com/Thermoquad/doorbridge/internal/notify"
)

func intrusionAlarm(name string) notify.Notification {
	return notify.Notification{
		Title: "Intrusion Alarm!",
		Body:  fmt.Sprintf("Intrusion detected on %s!", name),
		Level: notify.LevelCritical,
	}
}

func lockTimeout(name string) notify.Notification {
	return notify.Notification{
		Title: "Lock remains open too long!",
		Body:  fmt.Sprintf("The lock on %s remained unlocked too long!", name),
		Level: notify.LevelWarning,
	}
}

func controllerOffline(name string, threshold time.Duration) notify.Notification {
	silence := fmt.Sprintf("%d minutes", int(threshold.Minutes()))
	if threshold < time.Minute {
		silence = threshold.String()
	}
	return notify.Notification{
		Title: "Controller Offline",
		Body:  fmt.Sprintf("No packets from the lock device for over %s: %s.", silence, name),
		Level: notify.LevelWarning,
	}
}

func controllerOnline(name string) notify.Notification {
	return notify.Notification{
		Title: "Controller Online",
		Body:  fmt.Sprintf("Controller for device %s is back online!", name),
		Level: notify.LevelInfo,
	}
}

func unlockedByUser(name string) notify.Notification {
	return notify.Notification{
		Title: "Lock Unlocked",
		Body:  fmt.Sprintf("The lock %s was unlocked by a user.", name),
		Level: notify.LevelInfo,
	}
}

func bridgeStopped(name string) notify.Notification {
	return notify.Notification{
		Title: "Bridge Stopped",
		Body:  fmt.Sprintf("Bridge stopped on %s", name),
		Level: notify.LevelWarning,
	}
}
