package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buemura/scanward/internal/tui/styles"
	"github.com/buemura/scanward/pkg/types"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Scans is the part of the job manager the interactive views drive.
type Scans interface {
	StartScan(ctx context.Context, targetURL, scanType string) (*types.ScanRecord, error)
	Get(ctx context.Context, id string) (*types.ScanRecord, error)
	Report(ctx context.Context, id string) (*types.ScanReport, error)
}

// PollInterval is how often a running scan is re-read.
var PollInterval = time.Second

// ScanCompleteMsg is sent once the scan reached a terminal state and its
// report was loaded.
type ScanCompleteMsg struct {
	Report *types.ScanReport
}

type scanStartedMsg struct{ rec *types.ScanRecord }

type scanProgressMsg struct{ rec *types.ScanRecord }

type scanErrorMsg struct{ err error }

// ScanModel shows the progress of one submitted scan.
type ScanModel struct {
	spinner  spinner.Model
	bar      progress.Model
	scans    Scans
	target   types.Target
	scanType string
	record   *types.ScanRecord
	done     bool
	err      string
}

// NewScanModel creates a progress view that submits target when started.
func NewScanModel(scans Scans, target types.Target, scanType string) ScanModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.ColorAccent)

	return ScanModel{
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		scans:    scans,
		target:   target,
		scanType: scanType,
	}
}

// Init starts the spinner and submits the scan.
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles spinner ticks and the scan lifecycle messages.
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanStartedMsg:
		m.record = msg.rec
		return m, m.poll(msg.rec.ID)

	case scanProgressMsg:
		m.record = msg.rec
		if msg.rec.Status.Terminal() {
			return m, m.fetchReport(msg.rec.ID)
		}
		return m, m.poll(msg.rec.ID)

	case ScanCompleteMsg:
		m.done = true
		m.record = &msg.Report.Scan
		return m, nil

	case scanErrorMsg:
		m.done = true
		m.err = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the scan progress.
func (m ScanModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(appTitle))
	b.WriteString("\n\n")

	switch {
	case m.err != "":
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("Scan failed: %s", m.err)))
		b.WriteString("\n")
	case m.record == nil:
		b.WriteString(fmt.Sprintf("%s Submitting %s scan...\n", m.spinner.View(), m.scanType))
	default:
		status := string(m.record.Status)
		if !m.done {
			status = m.spinner.View() + " " + status
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", styles.SelectedStyle.Render(status), styles.HelpStyle.Render(m.record.ID)))
		b.WriteString(m.bar.ViewAs(float64(m.record.Progress) / 100))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("  Target: %s\n", m.target.URL))

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("ctrl+c quit"))

	return b.String()
}

// Record returns the last observed state of the scan, if any.
func (m ScanModel) Record() *types.ScanRecord {
	return m.record
}

func (m ScanModel) start() tea.Cmd {
	scans, target, scanType := m.scans, m.target.URL, m.scanType
	return func() tea.Msg {
		rec, err := scans.StartScan(context.Background(), target, scanType)
		if err != nil {
			return scanErrorMsg{err: err}
		}
		return scanStartedMsg{rec: rec}
	}
}

func (m ScanModel) poll(id string) tea.Cmd {
	scans := m.scans
	return tea.Tick(PollInterval, func(time.Time) tea.Msg {
		rec, err := scans.Get(context.Background(), id)
		if err != nil {
			return scanErrorMsg{err: err}
		}
		return scanProgressMsg{rec: rec}
	})
}

func (m ScanModel) fetchReport(id string) tea.Cmd {
	scans := m.scans
	return func() tea.Msg {
		report, err := scans.Report(context.Background(), id)
		if err != nil {
			return scanErrorMsg{err: err}
		}
		return ScanCompleteMsg{Report: report}
	}
}
