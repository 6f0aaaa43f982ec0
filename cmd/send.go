// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

var (
	sendWait   time.Duration
	sendSettle time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <lock|unlock|arm|disarm>",
	Short: "Send one command to the controller",
	Long: `Send a single command byte to the controller.

Commands:
  lock    (0)  engage the lock
  unlock  (1)  release the lock
  arm     (A)  arm the intrusion alarm
  disarm  (D)  disarm the intrusion alarm

The wire character may be given instead of the name. With --wait, frames
received afterwards are printed until the wait expires.

The remote record is not updated; a running gateway will push the remote
state again on its next change.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "How long to print controller frames after sending")
	sendCmd.Flags().DurationVar(&sendSettle, "settle", 2*time.Second, "Delay after opening the port before writing")
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := frame.ParseCommand(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, connInfo, err := openConnection(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	// Opening the port may reset the controller
	time.Sleep(sendSettle)

	if _, err := conn.Write(command.Bytes()); err != nil {
		return &link.LinkError{Op: "write", Err: err}
	}
	fmt.Printf("Sent %s (%q)\n", command, byte(command))

	if sendWait <= 0 {
		return nil
	}
	return printFrames(conn, sendWait)
}

// printFrames prints decoded frames until d elapses or the read fails
func printFrames(conn link.Conn, d time.Duration) error {
	decoder := frame.NewDecoder()
	buf := make([]byte, 128)
	deadline := time.Now().Add(d)

	for time.Now().Before(deadline) {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		frames, errs := decoder.Decode(buf[:n])
		for _, decodeErr := range errs {
			fmt.Println(errorStyle.Render(fmt.Sprintf("[ERROR] %v", decodeErr)))
		}
		for _, f := range frames {
			fmt.Print(formatMonitorLine(f, false))
		}
	}
	return nil
}
