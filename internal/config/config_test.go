package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "http://localhost:8080", cfg.Scanner.BaseURL)
	assert.Equal(t, "", cfg.Scanner.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, 120, cfg.Scanner.MaxPolls)
	assert.Equal(t, 10*time.Second, cfg.Scanner.AttackPollInterval)
	assert.Equal(t, 360, cfg.Scanner.AttackMaxPolls)
	assert.Equal(t, 100, cfg.Scanner.PageSize)
	assert.True(t, cfg.Scanner.NewSessionPerScan)

	assert.Equal(t, "https://www.virustotal.com/api/v3", cfg.Reputation.BaseURL)
	assert.Equal(t, "", cfg.Reputation.APIKey)
	assert.Equal(t, 15*time.Second, cfg.Reputation.PollInterval)
	assert.Equal(t, 4, cfg.Reputation.MaxPolls)
	assert.Equal(t, 4, cfg.Reputation.RequestsPerMinute)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Contains(t, cfg.Store.Path, "scanward.db")
	assert.Zero(t, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "table", cfg.OutputFormat)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"SCANWARD_SCANNER_BASE_URL", "SCANWARD_REPUTATION_API_KEY", "SCANWARD_JOBS_MAX_CONCURRENT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Scanner.BaseURL)
	assert.Equal(t, 120, cfg.Scanner.MaxPolls)
	assert.Equal(t, "", cfg.Reputation.APIKey)
	assert.Equal(t, "table", cfg.OutputFormat)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, ".scanward.yaml")

	content := `scanner:
  base_url: "http://zap.internal:8090"
  api_key: "zap-secret"
  poll_interval: 2s
  max_polls: 30
  attack_max_polls: 90
  new_session_per_scan: false
reputation:
  api_key: "vt-secret"
  poll_interval: 20s
  requests_per_minute: 0
store:
  driver: memory
jobs:
  max_concurrent: 3
log:
  level: debug
  format: console
server:
  addr: "127.0.0.1:9000"
output_format: json
`
	err := os.WriteFile(cfgFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromFile(cfgFile)
	require.NoError(t, err)

	assert.Equal(t, "http://zap.internal:8090", cfg.Scanner.BaseURL)
	assert.Equal(t, "zap-secret", cfg.Scanner.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, 30, cfg.Scanner.MaxPolls)
	assert.Equal(t, 90, cfg.Scanner.AttackMaxPolls)
	assert.False(t, cfg.Scanner.NewSessionPerScan)
	assert.Equal(t, 10*time.Second, cfg.Scanner.AttackPollInterval)

	assert.Equal(t, "vt-secret", cfg.Reputation.APIKey)
	assert.Equal(t, 20*time.Second, cfg.Reputation.PollInterval)
	assert.Zero(t, cfg.Reputation.RequestsPerMinute)
	assert.Equal(t, 4, cfg.Reputation.MaxPolls)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/.scanward.yaml")
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, ".scanward.yaml")

	err := os.WriteFile(cfgFile, []byte("{{invalid yaml"), 0644)
	require.NoError(t, err)

	_, err = LoadFromFile(cfgFile)
	assert.Error(t, err)
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCANWARD_SCANNER_BASE_URL", "http://zap:8080")
	t.Setenv("SCANWARD_SCANNER_POLL_INTERVAL", "1s")
	t.Setenv("SCANWARD_REPUTATION_API_KEY", "from-env")
	t.Setenv("SCANWARD_JOBS_MAX_CONCURRENT", "4")
	t.Setenv("SCANWARD_OUTPUT_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://zap:8080", cfg.Scanner.BaseURL)
	assert.Equal(t, time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, "from-env", cfg.Reputation.APIKey)
	assert.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadFromFile_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, ".scanward.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("scanner:\n  max_polls: 7\n"), 0644))
	t.Setenv("SCANWARD_SCANNER_MAX_POLLS", "9")

	cfg, err := LoadFromFile(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Scanner.MaxPolls)
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("addr", ":3000", "")
	cmd.Flags().String("output", "table", "")
	cmd.Flags().String("scanner-url", "", "")
	cmd.Flags().String("db", "", "")
	cmd.Flags().String("store", "sqlite", "")
	cmd.Flags().Int("max-concurrent", 0, "")
	cmd.Flags().String("log-level", "info", "")
	cmd.Flags().String("log-format", "json", "")
	return cmd
}

func TestApplyFlags(t *testing.T) {
	cfg := Defaults()
	cmd := newFlagCommand()

	require.NoError(t, cmd.Flags().Set("addr", ":8081"))
	require.NoError(t, cmd.Flags().Set("scanner-url", "http://zap:9090"))
	require.NoError(t, cmd.Flags().Set("max-concurrent", "2"))
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	require.NoError(t, cmd.Flags().Set("store", "memory"))

	ApplyFlags(&cfg, cmd)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, "http://zap:9090", cfg.Scanner.BaseURL)
	assert.Equal(t, 2, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "table", cfg.OutputFormat) // Not changed, flag wasn't set.
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestApplyFlags_NoOverrideWhenUnchanged(t *testing.T) {
	cfg := Config{
		Server:       ServerSettings{Addr: "127.0.0.1:1"},
		OutputFormat: "json",
		Store:        StoreSettings{Driver: "memory", Path: "/tmp/x.db"},
	}

	ApplyFlags(&cfg, newFlagCommand())

	assert.Equal(t, "127.0.0.1:1", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
}

func TestClientConfigs(t *testing.T) {
	cfg := Defaults()
	cfg.Scanner.APIKey = "zap"
	cfg.Reputation.APIKey = "vt"
	cfg.Log.Format = "console"

	sc := cfg.ScannerConfig()
	assert.Equal(t, "zap", sc.APIKey)
	assert.Equal(t, cfg.Scanner.AttackMaxPolls, sc.AttackMaxPolls)
	assert.Equal(t, cfg.Scanner.ProbeTimeout, sc.ProbeTimeout)
	assert.True(t, sc.NewSessionPerScan)

	rc := cfg.ReputationConfig()
	assert.Equal(t, "vt", rc.APIKey)
	assert.Equal(t, cfg.Reputation.GUIBaseURL, rc.GUIBaseURL)
	assert.Equal(t, 4, rc.RequestsPerMinute)

	lc := cfg.LoggingConfig()
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "console", lc.Format)
}

func TestConfigFilePath(t *testing.T) {
	path := ConfigFilePath()
	assert.Contains(t, path, ".scanward.yaml")
}

func TestLoadFromFile_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, ".scanward.yaml")

	content := `scanner:
  page_size: 50
`
	err := os.WriteFile(cfgFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromFile(cfgFile)
	require.NoError(t, err)

	// Explicitly set values.
	assert.Equal(t, 50, cfg.Scanner.PageSize)
	// Defaults for unset values.
	assert.Equal(t, "http://localhost:8080", cfg.Scanner.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, "table", cfg.OutputFormat)
}
