// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/doorbridge/pkg/frame"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the link by waiting for a valid controller frame",
	Long: `Wait for a valid controller frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any complete
frame whose payload decodes as text. Bytes outside a frame are ignored. The
controller sends a heartbeat periodically, so a healthy link answers within
one heartbeat interval.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := openConnection(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Doorbridge - Link Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a valid controller frame...\n\n")

	decoder := frame.NewDecoder()
	buf := make([]byte, 128)

	frameChan := make(chan *frame.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		rejected := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				f, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					rejected++
					continue
				}
				if f == nil {
					continue
				}
				if _, err := f.Text(); err != nil {
					rejected++
					continue
				}
				if skipped := decoder.Discarded(); skipped > 0 || rejected > 0 {
					fmt.Printf("(skipped %d idle bytes and %d bad frames before sync)\n", skipped, rejected)
				}
				frameChan <- f
				return
			}
		}
	}()

	select {
	case f := <-frameChan:
		text, _ := f.Text()
		kind := frame.Classify(text)
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Kind: %s\n", kind)
		fmt.Printf("  Payload: %q\n", text)
		fmt.Printf("  Length: %d bytes\n", len(f.Payload()))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
