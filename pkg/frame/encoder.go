// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import "fmt"

// Encode wraps a payload in frame delimiters.
// The payload must not contain either delimiter byte.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	for i, b := range payload {
		if b == StartByte || b == EndByte {
			return nil, fmt.Errorf("payload byte %d is a frame delimiter (0x%02X)", i, b)
		}
	}

	out := make([]byte, 0, len(payload)+2)
	out = append(out, StartByte)
	out = append(out, payload...)
	out = append(out, EndByte)
	return out, nil
}

// MustEncode is Encode for payloads known to be valid, such as the
// controller vocabulary. Panics on error.
func MustEncode(payload string) []byte {
	data, err := Encode([]byte(payload))
	if err != nil {
		panic(fmt.Sprintf("frame: encode error: %v", err))
	}
	return data
}
