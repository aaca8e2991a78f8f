package output

import (
	"fmt"
	"io"

	"github.com/buemura/scanward/pkg/types"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders a report as a colored terminal table.
type TableFormatter struct{}

func (f *TableFormatter) Format(w io.Writer, report *types.ScanReport) error {
	rec := &report.Scan

	fmt.Fprintf(w, "\nScan %s: %s\n", rec.ID, rec.TargetURL)
	fmt.Fprintf(w, "  Status:   %s (%d%%)\n", colorStatus(rec.Status), rec.Progress)
	fmt.Fprintf(w, "  Type:     %s\n", rec.ScanType)
	fmt.Fprintf(w, "  Duration: %s\n", durationText(rec))
	if line := reputationLine(rec); line != "" {
		fmt.Fprintf(w, "  Reputation: %s\n", line)
		if rec.ReputationPermalink != nil {
			fmt.Fprintf(w, "  Report:   %s\n", *rec.ReputationPermalink)
		}
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(w, "  Error:    %s\n", color.RedString(rec.ErrorMessage))
	}

	if len(report.Vulnerabilities) == 0 {
		fmt.Fprintln(w, "\n  No vulnerabilities.")
		return nil
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Type", "Location", "Parameter", "CWE"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")

	for _, v := range sortedVulnerabilities(report) {
		table.Append([]string{colorSeverity(v.Severity), v.VulnType, v.Location, v.Parameter, cweText(v)})
	}

	table.Render()

	fmt.Fprintf(w, "  Summary: %s\n", summaryLine(types.CountSeverities(report.Vulnerabilities)))
	return nil
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint("CRITICAL")
	case types.SeverityHigh:
		return color.RedString("HIGH")
	case types.SeverityMedium:
		return color.YellowString("MEDIUM")
	case types.SeverityLow:
		return color.CyanString("LOW")
	default:
		return string(s)
	}
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusCompleted:
		return color.GreenString(string(s))
	case types.StatusFailed:
		return color.RedString(string(s))
	case types.StatusScanning:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
