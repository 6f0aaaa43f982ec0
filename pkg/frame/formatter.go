// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")

	text, err := f.Text()
	if err != nil {
		return fmt.Sprintf("[%s] MALFORMED len=%d\n  Payload: %s\n", timestamp, len(f.payload), FormatHex(f.payload))
	}

	kind := Classify(text)
	return fmt.Sprintf("[%s] %s %q len=%d\n", timestamp, kind, text, len(f.payload))
}

// FormatHex returns a space-separated hex dump, 16 bytes per line
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n           ")
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	return strings.TrimRight(sb.String(), " ")
}
