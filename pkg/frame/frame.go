// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrMalformedPayload is returned by Frame.Text when the payload is not valid UTF-8
var ErrMalformedPayload = errors.New("malformed frame payload")

// Frame is a single payload received between StartByte and EndByte
type Frame struct {
	payload   []byte
	timestamp time.Time
}

// NewFrame creates a frame from a raw payload
func NewFrame(payload []byte) *Frame {
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Frame{payload: p, timestamp: time.Now()}
}

// Payload returns the raw payload bytes
func (f *Frame) Payload() []byte {
	return f.payload
}

// Timestamp returns the time the end delimiter was decoded
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Text decodes the payload as UTF-8 and trims surrounding whitespace.
// Controllers that terminate with CR/LF before the end delimiter still match
// the vocabulary.
func (f *Frame) Text() (string, error) {
	if !utf8.Valid(f.payload) {
		return "", ErrMalformedPayload
	}
	return strings.TrimSpace(string(f.payload)), nil
}
