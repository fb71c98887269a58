// ABOUTME: Server TUI for displaying connected streams and captions
// ABOUTME: Real-time server status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name    string
	Port    int
	Engine  string
	Clients []ClientInfo
}

// ClientInfo holds client information for display
type ClientInfo struct {
	Name     string
	ID       string
	State    string
	Stream   StreamStats
	LastText string
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

var (
	tuiTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	tuiLabel   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Width(8)
	tuiValue   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	tuiClient  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	tuiCaption = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("255")).PaddingLeft(4)
	tuiFaint   = lipgloss.NewStyle().Faint(true)
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	field := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, tuiLabel.Render(label), tuiValue.Render(value))
	}

	sections := []string{
		tuiTitle.Render("Caption Server"),
		"",
		field("Server", m.status.Name),
		field("Port", fmt.Sprintf("%d", m.status.Port)),
		field("Engine", m.status.Engine),
		field("Uptime", time.Since(m.startTime).Round(time.Second).String()),
		"",
		tuiClient.Render(fmt.Sprintf("Streams (%d)", len(m.status.Clients))),
	}

	if len(m.status.Clients) == 0 {
		sections = append(sections, tuiFaint.Render("  waiting for capture clients"))
	}
	for _, client := range m.status.Clients {
		sections = append(sections, renderClient(client))
	}

	sections = append(sections, "", tuiFaint.Render("q: quit"))
	return strings.Join(sections, "\n")
}

// renderClient shows one connection and its newest caption
func renderClient(client ClientInfo) string {
	line := "  " + client.Name + " "
	if client.State != "streaming" {
		line += tuiValue.Render("[" + client.State + "]")
	} else {
		st := client.Stream
		detail := fmt.Sprintf("[%s %v", st.Codec, st.Received.Round(time.Second))
		if st.Gaps > 0 {
			detail += fmt.Sprintf(", gaps %d", st.Gaps)
		}
		if st.Refused > 0 {
			detail += fmt.Sprintf(", refused %d", st.Refused)
		}
		line += tuiValue.Render(detail + "]")
	}

	if client.LastText == "" {
		return line
	}
	return line + "\n" + tuiCaption.Render(client.LastText)
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(serverName string, port int, engine string) error {
	m := tuiModel{
		status: ServerStatus{
			Name:    serverName,
			Port:    port,
			Engine:  engine,
			Clients: []ClientInfo{},
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
