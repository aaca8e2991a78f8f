package views

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buemura/scanward/pkg/types"
)

func newTestReport() *types.ScanReport {
	verdict := types.VerdictMalicious
	return &types.ScanReport{
		Scan: types.ScanRecord{
			ID:                       "scan-1",
			TargetURL:                "https://example.com",
			Status:                   types.StatusCompleted,
			Progress:                 100,
			TotalVulnerabilities:     3,
			HighCount:                1,
			MediumCount:              1,
			LowCount:                 1,
			ReputationVerdict:        &verdict,
			ReputationMaliciousCount: types.Ptr(5),
		},
		Vulnerabilities: []types.Vulnerability{
			{VulnType: "Server Leaks Version Information", Severity: types.SeverityLow, Location: "https://example.com/"},
			{VulnType: "Missing Anti-clickjacking Header", Severity: types.SeverityMedium, Location: "https://example.com/"},
			{VulnType: "Cross Site Scripting (Reflected)", Severity: types.SeverityHigh, Location: "https://example.com/search",
				Parameter: "q", Solution: "Encode output", CWEID: types.Ptr(79)},
		},
	}
}

func TestResultsModelView(t *testing.T) {
	m := NewResultsModel(newTestReport())
	view := m.View()

	assert.Contains(t, view, "Scan Results")
	assert.Contains(t, view, "https://example.com")
	assert.Contains(t, view, "Cross Site Scripting (Reflected)")
	assert.Contains(t, view, "Total: 3 vulnerabilities")
	assert.Contains(t, view, "malicious")
	assert.Contains(t, view, "(5 malicious engines)")
}

func TestResultsModelSortsBySeverity(t *testing.T) {
	m := NewResultsModel(newTestReport())

	require.Len(t, m.vulns, 3)
	assert.Equal(t, types.SeverityHigh, m.vulns[0].Severity)
	assert.Equal(t, types.SeverityLow, m.vulns[2].Severity)
	// The selected (first) finding is shown in detail.
	assert.Contains(t, m.View(), "Solution: Encode output")
	assert.Contains(t, m.View(), "CWE: 79")
}

func TestResultsModelNavigate(t *testing.T) {
	m := NewResultsModel(newTestReport())

	updated, _ := m.Update(keyRune("j"))
	m = updated.(ResultsModel)
	assert.Equal(t, 1, m.cursor)

	updated, _ = m.Update(keyRune("k"))
	m = updated.(ResultsModel)
	assert.Equal(t, 0, m.cursor)

	// Should not go below 0.
	updated, _ = m.Update(keyRune("k"))
	m = updated.(ResultsModel)
	assert.Equal(t, 0, m.cursor)
}

func TestResultsModelNavigateBoundary(t *testing.T) {
	m := NewResultsModel(newTestReport())

	for i := 0; i < 5; i++ {
		updated, _ := m.Update(keyRune("j"))
		m = updated.(ResultsModel)
	}
	assert.Equal(t, 2, m.cursor)
}

func TestResultsModelEmptyFindings(t *testing.T) {
	m := NewResultsModel(&types.ScanReport{
		Scan: types.ScanRecord{ID: "scan-2", Status: types.StatusFailed, ErrorMessage: "scanning engine unavailable"},
	})
	view := m.View()
	assert.Contains(t, view, "No vulnerabilities found")
	assert.Contains(t, view, "scanning engine unavailable")
	assert.NotContains(t, view, "Reputation")
}

func TestResultsModelExport(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	m := NewResultsModel(newTestReport())
	updated, _ := m.Update(keyRune("e"))
	m = updated.(ResultsModel)

	assert.Contains(t, m.View(), "Report exported to scanward-scan-1.json")
	data, err := os.ReadFile("scanward-scan-1.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"vulnerabilities"`)
}

func TestResultsModelQuit(t *testing.T) {
	m := NewResultsModel(newTestReport())
	_, cmd := m.Update(keyRune("q"))
	assert.NotNil(t, cmd)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel...", truncate("hello world", 6))
	assert.Equal(t, "hello world", truncate("hello world", 50))
}
