package views

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/buemura/scanward/internal/output"
	"github.com/buemura/scanward/internal/tui/styles"
	"github.com/buemura/scanward/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// ResultsModel is the view model for a finished scan.
type ResultsModel struct {
	report    *types.ScanReport
	vulns     []types.Vulnerability
	cursor    int
	offset    int
	maxRows   int
	exported  string
	exportErr string
}

// NewResultsModel creates a results view, most severe findings first.
func NewResultsModel(report *types.ScanReport) ResultsModel {
	vulns := append([]types.Vulnerability(nil), report.Vulnerabilities...)
	sort.SliceStable(vulns, func(i, j int) bool {
		return types.SeverityRank(vulns[i].Severity) < types.SeverityRank(vulns[j].Severity)
	})
	return ResultsModel{
		report:  report,
		vulns:   vulns,
		maxRows: 20,
	}
}

// Init returns nil (no initial command).
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles key events for scrolling and export.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.vulns)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.maxRows {
					m.offset = m.cursor - m.maxRows + 1
				}
			}
		case "e":
			m.exportJSON()
		case "q":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the findings table for the scan.
func (m ResultsModel) View() string {
	var b strings.Builder
	scan := m.report.Scan

	b.WriteString(styles.TitleStyle.Render("Scanward • Scan Results"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s  %s  %s\n",
		styles.SelectedStyle.Render(string(scan.Status)),
		scan.TargetURL,
		styles.HelpStyle.Render(scan.ID)))

	if scan.ErrorMessage != "" {
		b.WriteString(styles.ErrorStyle.Render("Error: " + scan.ErrorMessage))
		b.WriteString("\n")
	}
	if scan.ReputationVerdict != nil {
		b.WriteString(m.reputationLine())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.vulns) == 0 {
		b.WriteString("No vulnerabilities found.\n")
	} else {
		b.WriteString(m.summaryLine())
		b.WriteString("\n\n")

		header := fmt.Sprintf("  %-10s %-45s %s", "SEVERITY", "TYPE", "LOCATION")
		b.WriteString(styles.HeaderStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", 90))
		b.WriteString("\n")

		end := m.offset + m.maxRows
		if end > len(m.vulns) {
			end = len(m.vulns)
		}

		for i := m.offset; i < end; i++ {
			v := m.vulns[i]
			cursor := "  "
			if i == m.cursor {
				cursor = styles.CursorStyle.Render("> ")
			}

			severity := styles.SeverityStyle(string(v.Severity)).Render(fmt.Sprintf("%-10s", strings.ToUpper(string(v.Severity))))
			b.WriteString(fmt.Sprintf("%s%s %-45s %s\n", cursor, severity,
				truncate(v.VulnType, 45), styles.HelpStyle.Render(truncate(v.Location, 40))))
		}

		if len(m.vulns) > m.maxRows {
			b.WriteString(fmt.Sprintf("\n  Showing %d-%d of %d vulnerabilities\n",
				m.offset+1, end, len(m.vulns)))
		}

		b.WriteString("\n")
		b.WriteString(m.detailView(m.vulns[m.cursor]))
	}

	if m.exported != "" {
		b.WriteString("\n")
		b.WriteString(styles.SelectedStyle.Render("Report exported to " + m.exported))
	}
	if m.exportErr != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.exportErr))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ scroll • e export JSON • esc back • q quit"))

	return b.String()
}

func (m ResultsModel) summaryLine() string {
	counts := m.report.Scan.Counts()
	parts := []string{
		styles.SeverityCriticalStyle.Render(fmt.Sprintf("critical: %d", counts.Critical)),
		styles.SeverityHighStyle.Render(fmt.Sprintf("high: %d", counts.High)),
		styles.SeverityMediumStyle.Render(fmt.Sprintf("medium: %d", counts.Medium)),
		styles.SeverityLowStyle.Render(fmt.Sprintf("low: %d", counts.Low)),
	}
	return fmt.Sprintf("Total: %d vulnerabilities  [%s]", len(m.vulns), strings.Join(parts, "  "))
}

func (m ResultsModel) reputationLine() string {
	scan := m.report.Scan
	verdict := string(*scan.ReputationVerdict)
	line := "Reputation: " + styles.VerdictStyle(verdict).Render(verdict)
	if scan.ReputationMaliciousCount != nil {
		line += fmt.Sprintf(" (%d malicious engines)", *scan.ReputationMaliciousCount)
	}
	return line
}

func (m ResultsModel) detailView(v types.Vulnerability) string {
	lines := []string{
		"Type: " + v.VulnType,
		"Severity: " + string(v.Severity),
		"Location: " + strings.TrimSpace(v.Method+" "+v.Location),
	}
	if v.Parameter != "" {
		lines = append(lines, "Parameter: "+v.Parameter)
	}
	if v.CWEID != nil {
		lines = append(lines, fmt.Sprintf("CWE: %d", *v.CWEID))
	}
	if v.Description != "" {
		lines = append(lines, "Description: "+truncate(v.Description, 200))
	}

	var b strings.Builder
	b.WriteString(styles.BorderStyle.Render(strings.Join(lines, "\n")))
	if v.Evidence != "" {
		b.WriteString(fmt.Sprintf("\n  Evidence: %s", v.Evidence))
	}
	if v.Solution != "" {
		b.WriteString(fmt.Sprintf("\n  Solution: %s", v.Solution))
	}
	return b.String()
}

func (m *ResultsModel) exportJSON() {
	path := fmt.Sprintf("scanward-%s.json", m.report.Scan.ID)
	f, err := os.Create(path)
	if err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}
	defer f.Close()

	if err := (&output.JSONFormatter{}).Format(f, m.report); err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	m.exported = path
	m.exportErr = ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
