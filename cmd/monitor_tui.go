// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/doorbridge/internal/link"
	"github.com/Thermoquad/doorbridge/pkg/frame"
)

// monitorReservedLines is the screen height taken by everything above the
// frame log
const monitorReservedLines = 18

// Frame log entry
type monitorEntry struct {
	timestamp time.Time
	message   string
	style     lipgloss.Style
}

// controllerView is the controller state as inferred from its frames alone
type controllerView struct {
	known       bool
	doorOpen    bool
	lockEngaged bool
	lockTimeout bool
	alarm       bool
	lastFrame   time.Time
}

func (c *controllerView) observe(kind frame.MessageKind, at time.Time) {
	c.lastFrame = at

	switch kind {
	case frame.MsgDoorOpened:
		c.known = true
		c.doorOpen = true
		c.lockEngaged = false
	case frame.MsgDoorClosed:
		c.known = true
		c.doorOpen = false
		c.lockEngaged = true
		c.lockTimeout = false
	case frame.MsgIntrusion:
		c.alarm = true
	case frame.MsgAlarmCleared:
		c.alarm = false
	case frame.MsgLockTimeout:
		c.lockTimeout = true
	}
}

// TUI model
type monitorModel struct {
	connInfo         string
	offlineThreshold time.Duration
	stats            *frame.Statistics
	controller       controllerView
	log              []monitorEntry
	maxLogEntries    int
	viewport         viewport.Model
	width            int
	height           int
	closed           bool
	quitting         bool
	now              func() time.Time
}

// Messages
type monitorTickMsg time.Time
type monitorFrameMsg struct {
	frame     *frame.Frame
	decodeErr error
	idle      uint64
	aborted   uint64
}
type monitorClosedMsg struct {
	err error
}

var (
	tuiLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	tuiValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newMonitorModel(connInfo string, offlineThreshold time.Duration) monitorModel {
	return monitorModel{
		connInfo:         connInfo,
		offlineThreshold: offlineThreshold,
		stats:            frame.NewStatistics(),
		controller:       controllerView{lockEngaged: true},
		maxLogEntries:    500,
		viewport:         viewport.New(80, 24-monitorReservedLines),
		width:            80,
		height:           24,
		now:              time.Now,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-monitorReservedLines, 5)
		m.viewport.SetContent(m.renderLog())
		return m, nil

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case monitorFrameMsg:
		m.applyFrame(msg)
		m.refreshLog()
		return m, nil

	case monitorClosedMsg:
		m.closed = true
		m.addEntry(m.now(), fmt.Sprintf("Connection lost: %v", msg.err), errorStyle)
		m.refreshLog()
		return m, nil
	}

	// Remaining keys and mouse events scroll the frame log
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *monitorModel) applyFrame(msg monitorFrameMsg) {
	m.stats.DiscardedBytes += msg.idle
	m.stats.AbortedFrames += msg.aborted

	if msg.decodeErr != nil {
		m.stats.Update(nil, msg.decodeErr, frame.MsgUnknown)
		m.addEntry(m.now(), fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), errorStyle)
		return
	}

	f := msg.frame
	text, err := f.Text()
	if err != nil {
		m.stats.Update(f, err, frame.MsgUnknown)
		m.addEntry(f.Timestamp(), "MALFORMED "+frame.FormatHex(f.Payload()), errorStyle)
		return
	}

	kind := frame.Classify(text)
	m.stats.Update(f, nil, kind)
	m.controller.observe(kind, f.Timestamp())
	m.addEntry(f.Timestamp(), fmt.Sprintf("%-14s %q", kind, text), kindStyle(kind))
}

func (m *monitorModel) addEntry(at time.Time, message string, style lipgloss.Style) {
	m.log = append(m.log, monitorEntry{
		timestamp: at,
		message:   message,
		style:     style,
	})

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

// refreshLog re-renders the frame log, following new entries unless the user
// has scrolled up
func (m *monitorModel) refreshLog() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderLog())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m monitorModel) renderLog() string {
	var s strings.Builder
	for i, e := range m.log {
		if i > 0 {
			s.WriteString("\n")
		}
		s.WriteString(timeStyle.Render(e.timestamp.Format("15:04:05.000")))
		s.WriteString(" ")
		s.WriteString(e.style.Render(e.message))
	}
	return s.String()
}

func (m monitorModel) renderStats() string {
	st := m.stats
	st.CalculateRates()

	var validPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
	}
	errorCount := errorStyle
	if st.Errors() == 0 {
		errorCount = tuiValueStyle
	}

	var s strings.Builder
	fmt.Fprintf(&s, "%s %s   %s %s   %s %s\n",
		tuiLabelStyle.Render("Total:"), tuiValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		tuiLabelStyle.Render("Valid:"), tuiValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		tuiLabelStyle.Render("Errors:"), errorCount.Render(fmt.Sprintf("%d", st.Errors())),
	)

	if st.Errors() > 0 {
		fmt.Fprintf(&s, "%s %s   %s %s   %s %s\n",
			tuiLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", st.MalformedFrames)),
			tuiLabelStyle.Render("Oversize:"), errorStyle.Render(fmt.Sprintf("%d", st.OversizeFrames)),
			tuiLabelStyle.Render("Unterminated:"), errorStyle.Render(fmt.Sprintf("%d", st.AbortedFrames)),
		)
	}

	if st.UnknownMessages > 0 || st.DiscardedBytes > 0 {
		fmt.Fprintf(&s, "%s %s   %s %s\n",
			tuiLabelStyle.Render("Unknown:"), unknownStyle.Render(fmt.Sprintf("%d", st.UnknownMessages)),
			tuiLabelStyle.Render("Discarded Bytes:"), timeStyle.Render(fmt.Sprintf("%d", st.DiscardedBytes)),
		)
	}

	fmt.Fprintf(&s, "%s %s   %s %s",
		tuiLabelStyle.Render("Frame Rate:"), tuiValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		tuiLabelStyle.Render("Error Rate:"), errorCount.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate)),
	)
	return s.String()
}

func (m monitorModel) renderController() string {
	c := m.controller

	door, lock := "unknown", "unknown"
	if c.known {
		door = doorStyle.Render("closed")
		if c.doorOpen {
			door = warnStyle.Render("open")
		}
		lock = okStyle.Render("engaged")
		if !c.lockEngaged {
			lock = warnStyle.Render("released")
		}
	}
	if c.lockTimeout {
		lock += " " + warnStyle.Render("(open too long)")
	}

	alarm := okStyle.Render("quiet")
	if c.alarm {
		alarm = alarmStyle.Render("INTRUSION")
	}

	status := timeStyle.Render("waiting for first frame")
	if !c.lastFrame.IsZero() {
		silence := m.now().Sub(c.lastFrame).Truncate(time.Second)
		status = okStyle.Render(fmt.Sprintf("online (last frame %s ago)", silence))
		if silence > m.offlineThreshold {
			status = warnStyle.Render(fmt.Sprintf("OFFLINE (silent for %s)", silence))
		}
	}
	if m.closed {
		status = errorStyle.Render("connection lost")
	}

	return fmt.Sprintf("%s %s   %s %s   %s %s\n%s %s",
		tuiLabelStyle.Render("Door:"), door,
		tuiLabelStyle.Render("Lock:"), lock,
		tuiLabelStyle.Render("Alarm:"), alarm,
		tuiLabelStyle.Render("Controller:"), status,
	)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("DOORBRIDGE - FRAME MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Arrows scroll | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.renderStats()))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.renderController()))
	s.WriteString("\n\n")

	s.WriteString(tuiLabelStyle.Render("Recent Frames:"))
	s.WriteString("\n")
	s.WriteString(m.viewport.View())

	return s.String()
}

// runMonitorTUI shows the monitor as a live terminal UI until 'q'
func runMonitorTUI(conn link.Conn, connInfo string, offlineThreshold time.Duration) error {
	p := tea.NewProgram(newMonitorModel(connInfo, offlineThreshold))

	// Reader goroutine
	go func() {
		decoder := frame.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				p.Send(monitorClosedMsg{err: err})
				return
			}

			for i := 0; i < n; i++ {
				f, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr == nil && f == nil {
					continue
				}
				p.Send(monitorFrameMsg{
					frame:     f,
					decodeErr: decodeErr,
					idle:      decoder.Discarded(),
					aborted:   decoder.Aborted(),
				})
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
