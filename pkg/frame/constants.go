// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package frame implements the delimiter-framed text protocol spoken by the
// door controller over its serial link.
//
// A frame is a single StartByte, an ASCII/UTF-8 payload, and a single
// EndByte. There is no length prefix, escaping, or checksum. Commands sent to
// the controller are bare ASCII characters and are not framed.
package frame

// Protocol framing bytes
const (
	StartByte = 0xFB
	EndByte   = 0xFA
)

// MaxPayloadSize bounds the receive buffer. The controller vocabulary is a
// handful of bytes; anything longer is line noise.
const MaxPayloadSize = 64

// Decoder states
const (
	stateIdle = iota
	statePayload
)
