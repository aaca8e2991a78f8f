package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget_PlainHost(t *testing.T) {
	target, err := ParseTarget("example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Host)
	assert.Equal(t, "https", target.Scheme)
	assert.Equal(t, "https://example.com", target.URL)
	assert.Zero(t, target.Port)
}

func TestParseTarget_HostPort(t *testing.T) {
	target, err := ParseTarget("192.168.1.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", target.Host)
	assert.Equal(t, 8080, target.Port)
	assert.Equal(t, "https://192.168.1.1:8080", target.URL)
}

func TestParseTarget_HTTPURL(t *testing.T) {
	target, err := ParseTarget("http://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Host)
	assert.Equal(t, "http", target.Scheme)
	assert.Equal(t, "http://example.com/path", target.URL)
}

func TestParseTarget_HTTPSURLWithPort(t *testing.T) {
	target, err := ParseTarget("https://example.com:9443/api")
	require.NoError(t, err)
	assert.Equal(t, 9443, target.Port)
	assert.Equal(t, "https://example.com:9443/api", target.URL)
}

func TestParseTarget_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		errPart string
	}{
		{"empty", "", "empty"},
		{"whitespace only", "   ", "empty"},
		{"bad scheme", "ftp://example.com", "unsupported scheme"},
		{"no host", "https://", "no hostname"},
		{"bad port", "example.com:abc", "invalid port"},
		{"port out of range", "example.com:99999", "out of range"},
		{"path without scheme", "example.com/admin", "invalid host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTarget(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityRank(SeverityCritical), SeverityRank(SeverityHigh))
	assert.Less(t, SeverityRank(SeverityHigh), SeverityRank(SeverityMedium))
	assert.Less(t, SeverityRank(SeverityMedium), SeverityRank(SeverityLow))
	assert.Less(t, SeverityRank(SeverityLow), SeverityRank(Severity("bogus")))
}

func TestCountSeverities(t *testing.T) {
	counts := CountSeverities([]Vulnerability{
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	})
	assert.Equal(t, SeverityCounts{Critical: 1, High: 2, Low: 1}, counts)
	assert.Equal(t, 4, counts.Total())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusScanning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestApply_OnlySetFields(t *testing.T) {
	rec := ScanRecord{ID: "s1", Status: StatusScanning, Progress: 10, ErrorMessage: ""}
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rec.Apply(ScanPatch{
		Status:      Ptr(StatusCompleted),
		Progress:    Ptr(100),
		CompletedAt: &done,
	}.WithCounts(SeverityCounts{Critical: 1, Medium: 2}))

	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, 3, rec.TotalVulnerabilities)
	assert.Equal(t, 1, rec.CriticalCount)
	assert.Equal(t, 2, rec.MediumCount)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, done, *rec.CompletedAt)
	assert.Nil(t, rec.ReputationVerdict)
	assert.Nil(t, rec.ReputationStats)
}

func TestApply_CopiesReputationStats(t *testing.T) {
	stats := map[string]any{"error": "quota exceeded"}
	rec := ScanRecord{}
	rec.Apply(ScanPatch{ReputationVerdict: Ptr(VerdictError), ReputationStats: stats})

	stats["error"] = "mutated"
	assert.Equal(t, "quota exceeded", rec.ReputationStats["error"])
	assert.Equal(t, VerdictError, *rec.ReputationVerdict)
}
