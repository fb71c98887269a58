// ABOUTME: Bubbletea model for the capture TUI
// ABOUTME: Shows pipeline configuration, drop counters and live captions
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MaxCaptions is how many transcripts the caption pane keeps
const MaxCaptions = 6

// Caption is one line of the caption pane
type Caption struct {
	Start time.Duration
	Text  string
	Final bool
}

// Model represents the TUI state
type Model struct {
	// Transcriber
	connected  bool
	serverName string
	engine     string

	// Pipeline
	device       string
	strategy     string
	inputRate    int
	outputRate   int
	channels     int
	blockIn      int
	blockOut     int
	latency      time.Duration
	sessionCount int

	// Stats
	delivered    uint64
	queued       int
	overflows    uint64
	backpressure uint64
	xruns        uint64
	mismatched   uint64
	orphaned     uint64

	// Monitor
	monitor bool
	volume  int
	muted   bool

	// Runtime
	goroutines int
	memAlloc   uint64
	memSys     uint64

	captions  []Caption
	showDebug bool
	controls  *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case Caption:
		m.addCaption(msg)
	}

	return m, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	captionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderPipeline())
	b.WriteString(m.renderStats())
	if m.monitor {
		b.WriteString(m.renderMonitor())
	}
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	body := boxStyle.Width(min(m.width-2, 72)).Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.renderCaptions(),
		faintStyle.Render(m.helpLine()))
}

func (m Model) renderHeader() string {
	status := warnStyle.Render("Local only")
	if m.connected {
		status = valueStyle.Render(fmt.Sprintf("Connected to %s (%s)", m.serverName, m.engine))
	} else if m.engine != "" {
		status = valueStyle.Render(fmt.Sprintf("Local engine: %s", m.engine))
	}
	return titleStyle.Render("Live Captions") + "\n" +
		headerStyle.Render("Transcriber: ") + status + "\n\n"
}

func (m Model) renderPipeline() string {
	if m.strategy == "" {
		return valueStyle.Render("Waiting for capture device...") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Device:   "))
	b.WriteString(valueStyle.Render(truncate(m.device, 50)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Format:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d Hz %s -> %d Hz Mono",
		m.inputRate, channelName(m.channels), m.outputRate)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Strategy: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s, %d -> %d frames (%v)",
		m.strategy, m.blockIn, m.blockOut, m.latency.Round(time.Millisecond))))
	if m.sessionCount > 1 {
		b.WriteString(warnStyle.Render(fmt.Sprintf(" [reconfigured x%d]", m.sessionCount-1)))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderStats() string {
	drops := fmt.Sprintf("overflow %d  refused %d  xrun %d  mismatch %d",
		m.overflows, m.backpressure, m.xruns, m.mismatched)
	style := valueStyle
	if m.overflows+m.backpressure+m.xruns+m.mismatched > 0 {
		style = warnStyle
	}

	return "\n" + headerStyle.Render("Blocks:   ") +
		valueStyle.Render(fmt.Sprintf("%d delivered, %d queued", m.delivered, m.queued)) + "\n" +
		headerStyle.Render("Drops:    ") + style.Render(drops) + "\n"
}

func (m Model) renderMonitor() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}
	return headerStyle.Render("Monitor:  ") +
		valueStyle.Render(fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)) + "\n"
}

func (m Model) renderDebug() string {
	return "\n" + headerStyle.Render("Debug:    ") +
		valueStyle.Render(fmt.Sprintf("goroutines %d  alloc %.1f MiB  sys %.1f MiB  orphaned frames %d",
			m.goroutines, float64(m.memAlloc)/(1<<20), float64(m.memSys)/(1<<20), m.orphaned)) + "\n"
}

func (m Model) renderCaptions() string {
	if len(m.captions) == 0 {
		return faintStyle.Render("  (no captions yet)")
	}

	lines := make([]string, 0, len(m.captions))
	for _, c := range m.captions {
		stamp := faintStyle.Render(formatStamp(c.Start))
		text := captionStyle.Render(c.Text)
		if !c.Final {
			text = faintStyle.Render(c.Text)
		}
		lines = append(lines, "  "+stamp+"  "+text)
	}
	return strings.Join(lines, "\n")
}

func (m Model) helpLine() string {
	if m.monitor {
		return "↑/↓:Volume  m:Mute  d:Debug  q:Quit"
	}
	return "d:Debug  q:Quit"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "up":
		if m.monitor && m.volume < 100 {
			m.volume = min(m.volume+5, 100)
			m.controls.volume(m.volume, m.muted)
		}
	case "down":
		if m.monitor && m.volume > 0 {
			m.volume = max(m.volume-5, 0)
			m.controls.volume(m.volume, m.muted)
		}
	case "m":
		if m.monitor {
			m.muted = !m.muted
			m.controls.volume(m.volume, m.muted)
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// addCaption appends a transcript, replacing a trailing partial one
func (m *Model) addCaption(c Caption) {
	if n := len(m.captions); n > 0 && !m.captions[n-1].Final && m.captions[n-1].Start == c.Start {
		m.captions[n-1] = c
		return
	}
	m.captions = append(m.captions, c)
	if len(m.captions) > MaxCaptions {
		m.captions = m.captions[len(m.captions)-MaxCaptions:]
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Engine != "" {
		m.engine = msg.Engine
	}
	if msg.Strategy != "" {
		m.device = msg.Device
		m.strategy = msg.Strategy
		m.inputRate = msg.InputRate
		m.outputRate = msg.OutputRate
		m.channels = msg.Channels
		m.blockIn = msg.BlockIn
		m.blockOut = msg.BlockOut
		m.latency = msg.Latency
		m.sessionCount = msg.Sessions
	}
	if msg.Stats != nil {
		m.delivered = msg.Stats.Delivered
		m.queued = msg.Stats.Queued
		m.overflows = msg.Stats.Overflows
		m.backpressure = msg.Stats.Backpressure
		m.xruns = msg.Stats.Xruns
		m.mismatched = msg.Stats.Mismatched
		m.orphaned = msg.Stats.Orphaned
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

// StatusMsg updates TUI state. Zero fields leave the current value alone.
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Engine     string

	Device     string
	Strategy   string
	InputRate  int
	OutputRate int
	Channels   int
	BlockIn    int
	BlockOut   int
	Latency    time.Duration
	Sessions   int

	Stats *Counters

	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

// Counters are the pipeline drop and delivery counters
type Counters struct {
	Delivered    uint64
	Queued       int
	Overflows    uint64
	Backpressure uint64
	Xruns        uint64
	Mismatched   uint64
	Orphaned     uint64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

func formatStamp(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
