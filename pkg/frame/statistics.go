// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates.
// It is not safe for concurrent use; the read loop owns it.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	MalformedFrames uint64
	OversizeFrames  uint64
	AbortedFrames   uint64
	UnknownMessages uint64
	DiscardedBytes  uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decode outcome. kind is ignored unless the frame decoded.
func (s *Statistics) Update(f *Frame, decodeErr error, kind MessageKind) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	switch {
	case errors.Is(decodeErr, ErrFrameTooLong):
		s.OversizeFrames++
	case errors.Is(decodeErr, ErrMalformedPayload):
		s.MalformedFrames++
	case decodeErr != nil:
		s.MalformedFrames++
	case f != nil && kind == MsgUnknown:
		s.UnknownMessages++
		s.ValidFrames++
	case f != nil:
		s.ValidFrames++
	}
}

// Absorb collects the idle and aborted counters from a decoder
func (s *Statistics) Absorb(d *Decoder) {
	s.DiscardedBytes += d.Discarded()
	s.AbortedFrames += d.Aborted()
}

// Errors returns the number of frames that failed to decode
func (s *Statistics) Errors() uint64 {
	return s.MalformedFrames + s.OversizeFrames + s.AbortedFrames
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.UnknownMessages > 0 {
		result += fmt.Sprintf("  Unknown:          %5d\n", s.UnknownMessages)
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d\n", s.MalformedFrames)
	}
	if s.OversizeFrames > 0 {
		result += fmt.Sprintf("Oversize:        %8d\n", s.OversizeFrames)
	}
	if s.AbortedFrames > 0 {
		result += fmt.Sprintf("Unterminated:    %8d\n", s.AbortedFrames)
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
