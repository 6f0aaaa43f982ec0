// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"fmt"
	"strings"
)

// Command is a single ASCII command byte sent to the controller
type Command byte

// Outbound commands (Gateway → Controller)
const (
	CommandLock   Command = '0'
	CommandUnlock Command = '1'
	CommandArm    Command = 'A'
	CommandDisarm Command = 'D'
)

// Bytes returns the wire form of the command
func (c Command) Bytes() []byte {
	return []byte{byte(c)}
}

// String returns the command name
func (c Command) String() string {
	switch c {
	case CommandLock:
		return "LOCK"
	case CommandUnlock:
		return "UNLOCK"
	case CommandArm:
		return "ARM"
	case CommandDisarm:
		return "DISARM"
	default:
		return fmt.Sprintf("RAW(0x%02X)", byte(c))
	}
}

// ParseCommand accepts a command name (lock, unlock, arm, disarm) or the
// wire character itself
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lock", "0":
		return CommandLock, nil
	case "unlock", "1":
		return CommandUnlock, nil
	case "arm", "a":
		return CommandArm, nil
	case "disarm", "d":
		return CommandDisarm, nil
	}
	return 0, fmt.Errorf("unknown command %q (use lock, unlock, arm or disarm)", s)
}
