// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/doorbridge/pkg/frame"
)

var (
	monitorStatsInterval int
	monitorShowHex       bool
	monitorTUI           bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display controller frames in human-readable format",
	Long: `Continuously decode and display controller frames as they arrive.

Each frame is shown with its timestamp, message kind and payload. Malformed
and oversize frames are reported instead of skipped. Statistics are printed
periodically and on exit.

No remote store is contacted and nothing is written to the controller.

With --tui the same information is shown as a live terminal UI: running
statistics, the door/lock/alarm state inferred from the frames, how long the
controller has been silent, and a scrollable frame log.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 30, "Seconds between statistics summaries (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorShowHex, "hex", false, "Show the raw payload bytes of every frame")
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Use terminal UI (default is line output)")
}

var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	alarmStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// kindStyle picks the display style for a message kind
func kindStyle(kind frame.MessageKind) lipgloss.Style {
	switch kind {
	case frame.MsgDoorOpened, frame.MsgDoorClosed:
		return doorStyle
	case frame.MsgIntrusion:
		return alarmStyle
	case frame.MsgLockTimeout:
		return warnStyle
	case frame.MsgAlarmCleared, frame.MsgHeartbeat:
		return okStyle
	default:
		return unknownStyle
	}
}

func formatMonitorLine(f *frame.Frame, showHex bool) string {
	ts := timeStyle.Render(f.Timestamp().Format("15:04:05.000"))

	text, err := f.Text()
	if err != nil {
		return fmt.Sprintf("[%s] %s %s\n", ts, errorStyle.Render("MALFORMED"), frame.FormatHex(f.Payload()))
	}

	kind := frame.Classify(text)
	line := fmt.Sprintf("[%s] %-14s %q", ts, kindStyle(kind).Render(kind.String()), text)
	if showHex {
		line += "  " + timeStyle.Render(frame.FormatHex(f.Payload()))
	}
	return line + "\n"
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := openConnection(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if monitorTUI {
		return runMonitorTUI(conn, connInfo, cfg.Timing.OfflineThreshold)
	}

	// Unblock a pending read on Ctrl+C
	context.AfterFunc(ctx, func() { conn.Close() })

	fmt.Printf("Doorbridge - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := frame.NewDecoder()
	stats := frame.NewStatistics()
	buf := make([]byte, 128)
	lastStats := time.Now()

	defer func() {
		stats.Absorb(decoder)
		fmt.Print("\n" + stats.String())
	}()

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Println(errorStyle.Render(fmt.Sprintf("Read error: %v", err)))
			return err
		}

		for i := 0; i < n; i++ {
			f, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				fmt.Println(errorStyle.Render(fmt.Sprintf("[ERROR] %v", decodeErr)))
				stats.Update(nil, decodeErr, frame.MsgUnknown)
				continue
			}
			if f == nil {
				continue
			}

			text, textErr := f.Text()
			stats.Update(f, textErr, frame.Classify(text))
			fmt.Print(formatMonitorLine(f, monitorShowHex))
		}

		if monitorStatsInterval > 0 && time.Since(lastStats) >= time.Duration(monitorStatsInterval)*time.Second {
			stats.Absorb(decoder)
			fmt.Print("\n" + stats.String() + "\n")
			lastStats = time.Now()
		}
	}
}
