// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"fmt"
	"time"
)

// ErrFrameTooLong is returned when a payload grows past MaxPayloadSize
var ErrFrameTooLong = fmt.Errorf("frame exceeds %d bytes", MaxPayloadSize)

// Decoder implements the frame receive state machine.
//
// Bytes outside a frame are discarded. A StartByte always begins a new
// frame, dropping any unterminated one, so a garbled transmission costs at
// most the frame it occurred in.
type Decoder struct {
	state  int
	buffer []byte

	discarded uint64 // idle bytes dropped since the last frame
	aborted   uint64 // frames restarted before their end byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, 0, MaxPayloadSize),
	}
}

// Reset returns the decoder to idle and drops any partial frame
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
}

// InFrame reports whether a start byte has been seen without its end byte
func (d *Decoder) InFrame() bool {
	return d.state == statePayload
}

// Discarded returns and clears the count of idle bytes dropped
func (d *Decoder) Discarded() uint64 {
	n := d.discarded
	d.discarded = 0
	return n
}

// Aborted returns and clears the count of unterminated frames dropped
func (d *Decoder) Aborted() uint64 {
	n := d.aborted
	d.aborted = 0
	return n
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if the frame overflowed.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if b == StartByte {
		if d.state == statePayload {
			d.aborted++
		}
		d.Reset()
		d.state = statePayload
		return nil, nil
	}

	switch d.state {
	case stateIdle:
		// Waiting for START byte; stray END bytes land here too
		d.discarded++
		return nil, nil

	case statePayload:
		if b == EndByte {
			f := &Frame{
				payload:   make([]byte, len(d.buffer)),
				timestamp: time.Now(),
			}
			copy(f.payload, d.buffer)
			d.Reset()
			return f, nil
		}
		if len(d.buffer) >= MaxPayloadSize {
			d.Reset()
			return nil, ErrFrameTooLong
		}
		d.buffer = append(d.buffer, b)
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds a buffer through the decoder and returns every completed
// frame. Decode errors are returned alongside the frames that did complete.
func (d *Decoder) Decode(data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		f, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames, errs
}
