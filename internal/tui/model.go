package tui

import (
	"github.com/buemura/scanward/internal/tui/views"
	"github.com/buemura/scanward/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// appState represents which view is currently active.
type appState int

const (
	stateMenu    appState = iota // Scan type selection
	stateTarget                  // Target URL input
	stateScan                    // Scan in progress
	stateResults                 // Finished scan
)

var scanTypeItems = []views.ScanTypeItem{
	{Name: types.ScanTypeQuick, Description: "crawl and active scan with the engine's default policy"},
	{Name: types.ScanTypeDeep, Description: "same protocol, recorded as a deep scan"},
}

// Model is the root Bubble Tea model that manages view transitions.
type Model struct {
	state  appState
	scans  views.Scans
	width  int
	height int

	menu    views.MenuModel
	target  views.TargetModel
	scan    views.ScanModel
	results views.ResultsModel
}

// NewModel creates a root model that submits scans through scans.
func NewModel(scans views.Scans) Model {
	return Model{
		state:  stateMenu,
		scans:  scans,
		menu:   views.NewMenuModel(scanTypeItems),
		target: views.NewTargetModel(),
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.target.Init()
}

// Update handles messages and manages state transitions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			return m.handleBack()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	switch m.state {
	case stateMenu:
		return m.updateMenu(msg)
	case stateTarget:
		return m.updateTarget(msg)
	case stateScan:
		return m.updateScan(msg)
	case stateResults:
		return m.updateResults(msg)
	}

	return m, nil
}

// View renders the current view.
func (m Model) View() string {
	switch m.state {
	case stateMenu:
		return m.menu.View()
	case stateTarget:
		return m.target.View()
	case stateScan:
		return m.scan.View()
	case stateResults:
		return m.results.View()
	}
	return ""
}

// handleBack leaves the scan view alone: the run keeps going in the
// background and there is nothing to return to until it finishes.
func (m Model) handleBack() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateTarget, stateResults:
		m.state = stateMenu
		return m, nil
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		selected := m.menu.Selected()
		if selected != nil {
			m.target = views.NewTargetModel()
			m.target.SetScanType(selected.Name)
			m.state = stateTarget
			return m, m.target.Init()
		}
	}

	updated, cmd := m.menu.Update(msg)
	m.menu = updated.(views.MenuModel)
	return m, cmd
}

func (m Model) updateTarget(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		target, err := m.target.ValidatedTarget()
		if err == nil {
			m.scan = views.NewScanModel(m.scans, target, m.target.ScanType())
			m.state = stateScan
			return m, m.scan.Init()
		}
	}

	updated, cmd := m.target.Update(msg)
	m.target = updated.(views.TargetModel)
	return m, cmd
}

func (m Model) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(views.ScanCompleteMsg); ok {
		m.results = views.NewResultsModel(done.Report)
		m.state = stateResults
		return m, nil
	}

	updated, cmd := m.scan.Update(msg)
	m.scan = updated.(views.ScanModel)
	return m, cmd
}

func (m Model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.results.Update(msg)
	m.results = updated.(views.ResultsModel)
	return m, cmd
}
