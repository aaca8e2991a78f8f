package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/buemura/scanward/pkg/types"
)

// MarkdownFormatter renders a report as Markdown suitable for pasting into
// docs, issues, or pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, report *types.ScanReport) error {
	rec := &report.Scan

	fmt.Fprintf(w, "## Scan of %s\n\n", escapeMarkdown(rec.TargetURL))
	fmt.Fprintf(w, "- **ID:** `%s`\n", rec.ID)
	fmt.Fprintf(w, "- **Status:** %s (%d%%)\n", rec.Status, rec.Progress)
	fmt.Fprintf(w, "- **Type:** %s\n", rec.ScanType)
	fmt.Fprintf(w, "- **Duration:** %s\n", durationText(rec))
	if line := reputationLine(rec); line != "" {
		if rec.ReputationPermalink != nil {
			line = fmt.Sprintf("[%s](%s)", line, *rec.ReputationPermalink)
		}
		fmt.Fprintf(w, "- **Reputation:** %s\n", line)
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(w, "\n> %s\n", escapeMarkdown(rec.ErrorMessage))
	}
	fmt.Fprintln(w)

	if len(report.Vulnerabilities) == 0 {
		fmt.Fprintln(w, "_No vulnerabilities._")
		return nil
	}

	fmt.Fprintln(w, "| Severity | Type | Location | Parameter | CWE |")
	fmt.Fprintln(w, "|----------|------|----------|-----------|-----|")

	for _, v := range sortedVulnerabilities(report) {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			severityBadge(v.Severity),
			escapeMarkdown(v.VulnType),
			escapeMarkdown(v.Location),
			escapeMarkdown(v.Parameter),
			cweText(v))
	}

	fmt.Fprintf(w, "\n**Summary:** %s\n", summaryLine(types.CountSeverities(report.Vulnerabilities)))
	return nil
}

// severityBadge returns a bold severity label for Markdown.
func severityBadge(s types.Severity) string {
	return fmt.Sprintf("**%s**", string(s))
}

// escapeMarkdown escapes pipe characters that would break Markdown tables.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
