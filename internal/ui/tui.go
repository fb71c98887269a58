// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it reports key presses on
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChange is a monitor volume request from the keyboard
type VolumeChange struct {
	Volume int
	Muted  bool
}

// Controls holds channels for communication from the TUI to the app
type Controls struct {
	Volume chan VolumeChange
	Quit   chan struct{}
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Volume: make(chan VolumeChange, 10),
		Quit:   make(chan struct{}, 1),
	}
}

func (c *Controls) volume(volume int, muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Volume <- VolumeChange{Volume: volume, Muted: muted}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model. monitor enables the volume controls.
func NewModel(controls *Controls, monitor bool) Model {
	return Model{
		volume:   100,
		monitor:  monitor,
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls, monitor bool) *tea.Program {
	return tea.NewProgram(NewModel(controls, monitor), tea.WithAltScreen())
}
