// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

// MessageKind classifies an inbound controller payload
type MessageKind int

// Inbound vocabulary (Controller → Gateway)
const (
	MsgUnknown MessageKind = iota
	MsgDoorOpened
	MsgDoorClosed
	MsgIntrusion
	MsgAlarmCleared
	MsgLockTimeout
	MsgHeartbeat
)

// Wire payloads for each inbound message
const (
	PayloadDoorOpened   = "001"
	PayloadDoorClosed   = "000"
	PayloadIntrusion    = "EFF"
	PayloadAlarmCleared = "D"
	PayloadLockTimeout  = "NOLOCK"
	PayloadHeartbeat    = "HB"
)

var payloadKinds = map[string]MessageKind{
	PayloadDoorOpened:   MsgDoorOpened,
	PayloadDoorClosed:   MsgDoorClosed,
	PayloadIntrusion:    MsgIntrusion,
	PayloadAlarmCleared: MsgAlarmCleared,
	PayloadLockTimeout:  MsgLockTimeout,
	PayloadHeartbeat:    MsgHeartbeat,
}

// Classify maps a decoded payload to its message kind.
// Matching is exact and case-sensitive.
func Classify(text string) MessageKind {
	if kind, ok := payloadKinds[text]; ok {
		return kind
	}
	return MsgUnknown
}

// String returns the message kind name
func (k MessageKind) String() string {
	switch k {
	case MsgDoorOpened:
		return "DOOR_OPENED"
	case MsgDoorClosed:
		return "DOOR_CLOSED"
	case MsgIntrusion:
		return "INTRUSION"
	case MsgAlarmCleared:
		return "ALARM_CLEARED"
	case MsgLockTimeout:
		return "LOCK_TIMEOUT"
	case MsgHeartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}
