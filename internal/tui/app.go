// Package tui is the interactive terminal mode: pick a scan type, enter a
// target, follow the run and browse its findings.
package tui

import (
	"fmt"

	"github.com/buemura/scanward/internal/tui/views"
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive TUI on top of scans.
func Run(scans views.Scans) error {
	m := NewModel(scans)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
