package views

import (
	"fmt"
	"strings"

	"github.com/buemura/scanward/internal/tui/styles"
	"github.com/buemura/scanward/pkg/types"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const appTitle = "Scanward • Interactive Mode"

// TargetModel is the view model for target URL input.
type TargetModel struct {
	textInput textinput.Model
	scanType  string
	err       string
}

// NewTargetModel creates a new target input view.
func NewTargetModel() TargetModel {
	ti := textinput.New()
	ti.Placeholder = "e.g. https://example.com or example.com:8443"
	ti.Focus()
	ti.CharLimit = 2048
	ti.Width = 50
	ti.PromptStyle = styles.CursorStyle
	ti.TextStyle = styles.SelectedStyle

	return TargetModel{textInput: ti}
}

// SetScanType sets which scan profile this target is for.
func (m *TargetModel) SetScanType(name string) {
	m.scanType = name
}

func (m TargetModel) ScanType() string {
	return m.scanType
}

// Init returns the text input blink command.
func (m TargetModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events. Enter validates the current value and keeps
// the error visible until the next keystroke.
func (m TargetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if _, err := m.ValidatedTarget(); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.err = ""
	return m, cmd
}

// View renders the target input form.
func (m TargetModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(appTitle))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("Scan type: %s", m.scanType)))
	b.WriteString("\n")
	b.WriteString("Enter target URL:\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("enter submit • esc back"))

	return b.String()
}

// ValidatedTarget parses the input, normalizing bare hosts to https URLs.
func (m TargetModel) ValidatedTarget() (types.Target, error) {
	value := strings.TrimSpace(m.textInput.Value())
	if value == "" {
		return types.Target{}, fmt.Errorf("target is required")
	}
	return types.ParseTarget(value)
}

// SetValue replaces the input text.
func (m *TargetModel) SetValue(v string) {
	m.textInput.SetValue(v)
}
