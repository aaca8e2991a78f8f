package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/buemura/scanward/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so values set by one test do
// not leak into the next through the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCANWARD_REPUTATION_API_KEY", "")
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// fakeEngine answers the scanning engine endpoints with jobs that finish on
// the first poll.
func fakeEngine(t *testing.T) *httptest.Server {
	t.Helper()
	alerts := []map[string]any{
		{"alert": "Cross Site Scripting (Reflected)", "risk": "High", "riskcode": "3", "url": "https://example.com/search", "param": "q", "cweid": "79"},
		{"alert": "Missing Anti-clickjacking Header", "risk": "Medium", "riskcode": "2", "url": "https://example.com/", "cweid": "1021"},
	}
	replies := map[string]any{
		"/JSON/core/view/version/":      map[string]string{"version": "2.15.0"},
		"/JSON/core/action/newSession/": map[string]string{"Result": "OK"},
		"/JSON/core/action/accessUrl/":  map[string]string{"Result": "OK"},
		"/JSON/spider/action/scan/":     map[string]string{"scan": "1"},
		"/JSON/spider/view/status/":     map[string]string{"status": "100"},
		"/JSON/ascan/action/scan/":      map[string]string{"scan": "2"},
		"/JSON/ascan/view/status/":      map[string]string{"status": "100"},
		"/JSON/core/view/alerts/":       map[string]any{"alerts": alerts},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := replies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deadEngineURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scanward version")
}

func TestRootHelpListsCommands(t *testing.T) {
	out, _, err := executeCmd(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"scan", "serve", "status", "interactive", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestScanMissingTarget(t *testing.T) {
	_, _, err := executeCmd(t, "scan", "--store", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--target")
}

func TestScanInvalidTarget(t *testing.T) {
	_, _, err := executeCmd(t, "scan", "--store", "memory", "-t", "ftp://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid target")
}

func TestScanInvalidType(t *testing.T) {
	_, _, err := executeCmd(t, "scan", "--store", "memory", "-t", "https://example.com", "--type", "full")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scan type")
}

func TestScanUnknownOutputFormat(t *testing.T) {
	_, _, err := executeCmd(t, "scan", "--store", "memory", "-t", "https://example.com", "-o", "xml")
	require.Error(t, err)
}

func TestScanJSONReport(t *testing.T) {
	engine := fakeEngine(t)

	out, errOut, err := executeCmd(t, "scan", "--store", "memory", "--scanner-url", engine.URL,
		"-t", "https://example.com", "--type", "deep", "-o", "json")
	require.NoError(t, err)

	var report types.ScanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, types.StatusCompleted, report.Scan.Status)
	assert.Equal(t, 100, report.Scan.Progress)
	assert.Equal(t, types.ScanTypeDeep, report.Scan.ScanType)
	assert.Equal(t, 1, report.Scan.CriticalCount)
	assert.Equal(t, 1, report.Scan.HighCount)
	assert.Len(t, report.Vulnerabilities, 2)
	assert.Nil(t, report.Scan.ReputationVerdict)

	assert.Contains(t, errOut, "[100%] completed")
}

func TestScanTableReport(t *testing.T) {
	engine := fakeEngine(t)

	out, _, err := executeCmd(t, "scan", "--store", "memory", "--scanner-url", engine.URL, "-t", "example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.com")
	assert.Contains(t, out, "Cross Site Scripting (Reflected)")
	assert.Contains(t, out, "2 vulnerabilities (1 critical, 1 high, 0 medium, 0 low)")
}

func TestScanEngineDownFails(t *testing.T) {
	out, errOut, err := executeCmd(t, "scan", "--store", "memory", "--scanner-url", deadEngineURL(), "-t", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning engine unavailable")
	assert.Contains(t, out, "failed")
	assert.Contains(t, errOut, "[100%] failed")
}

func TestStatusRequiresPersistentStore(t *testing.T) {
	_, _, err := executeCmd(t, "status", "--store", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent store")
}

func TestStatusEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "scanward.db")

	out, _, err := executeCmd(t, "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No scans stored")

	out, _, err = executeCmd(t, "status", "--db", db, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestStatusListsAndReportsStoredScans(t *testing.T) {
	engine := fakeEngine(t)
	db := filepath.Join(t.TempDir(), "scanward.db")

	out, _, err := executeCmd(t, "scan", "--db", db, "--scanner-url", engine.URL, "-t", "https://example.com", "-o", "json")
	require.NoError(t, err)
	var report types.ScanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	out, _, err = executeCmd(t, "status", "--db", db, "-o", "json")
	require.NoError(t, err)
	var recs []types.ScanRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, report.Scan.ID, recs[0].ID)
	assert.Equal(t, types.StatusCompleted, recs[0].Status)

	out, _, err = executeCmd(t, "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, report.Scan.ID)
	assert.Contains(t, out, "100%")

	out, _, err = executeCmd(t, "status", report.Scan.ID, "--db", db, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "## Scan of https://example.com")
	assert.Contains(t, out, "Cross Site Scripting (Reflected)")
}

func TestStatusUnknownScan(t *testing.T) {
	db := filepath.Join(t.TempDir(), "scanward.db")

	_, _, err := executeCmd(t, "status", "nope", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan not found")
}

func TestInvalidLogFormat(t *testing.T) {
	_, _, err := executeCmd(t, "version", "--log-format", "xml")
	require.Error(t, err)
}
