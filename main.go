// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Doorbridge - Door Controller Gateway
//
// Bridges a serial door/lock controller to its cloud device record and
// notifies administrators of alarms and outages.

package main

import (
	"os"

	"github.com/Thermoquad/doorbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
