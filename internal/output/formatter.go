package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/buemura/scanward/pkg/types"
)

// Formatter renders a scan report to a writer.
type Formatter interface {
	Format(w io.Writer, report *types.ScanReport) error
}

// GetFormatter returns the appropriate formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	case "html":
		return &HTMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, markdown, html)", format)
	}
}

// sortedVulnerabilities returns a copy of the report's vulnerabilities,
// most severe first.
func sortedVulnerabilities(report *types.ScanReport) []types.Vulnerability {
	vulns := make([]types.Vulnerability, len(report.Vulnerabilities))
	copy(vulns, report.Vulnerabilities)
	sort.SliceStable(vulns, func(i, j int) bool {
		return types.SeverityRank(vulns[i].Severity) < types.SeverityRank(vulns[j].Severity)
	})
	return vulns
}

func summaryLine(c types.SeverityCounts) string {
	return fmt.Sprintf("%d vulnerabilities (%d critical, %d high, %d medium, %d low)",
		c.Total(), c.Critical, c.High, c.Medium, c.Low)
}

// reputationLine describes the reputation fields, or "" when the lookup was skipped.
func reputationLine(rec *types.ScanRecord) string {
	if rec.ReputationVerdict == nil {
		return ""
	}
	v := *rec.ReputationVerdict
	if v == types.VerdictError {
		if msg, ok := rec.ReputationStats["error"]; ok {
			return fmt.Sprintf("error (%v)", msg)
		}
		return string(v)
	}
	line := string(v)
	if rec.ReputationMaliciousCount != nil {
		line += fmt.Sprintf(" (%d malicious engines)", *rec.ReputationMaliciousCount)
	}
	return line
}

func durationText(rec *types.ScanRecord) string {
	if rec.ScanDurationSeconds == nil {
		return "-"
	}
	return strconv.FormatFloat(*rec.ScanDurationSeconds, 'f', 1, 64) + "s"
}

func cweText(v types.Vulnerability) string {
	if v.CWEID == nil {
		return "-"
	}
	return "CWE-" + strconv.Itoa(*v.CWEID)
}
