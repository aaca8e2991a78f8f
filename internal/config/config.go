// Package config provides configuration loading for scanward.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (SCANWARD_*) > config file (~/.scanward.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buemura/scanward/internal/logging"
	"github.com/buemura/scanward/internal/reputation"
	"github.com/buemura/scanward/internal/scanner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ScannerSettings configures the connection to the scanning engine.
type ScannerSettings struct {
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey             string        `mapstructure:"api_key" yaml:"api_key"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPolls           int           `mapstructure:"max_polls" yaml:"max_polls"`
	AttackPollInterval time.Duration `mapstructure:"attack_poll_interval" yaml:"attack_poll_interval"`
	AttackMaxPolls     int           `mapstructure:"attack_max_polls" yaml:"attack_max_polls"`
	PageSize           int           `mapstructure:"page_size" yaml:"page_size"`
	MaxChildren        int           `mapstructure:"max_children" yaml:"max_children"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	NewSessionPerScan  bool          `mapstructure:"new_session_per_scan" yaml:"new_session_per_scan"`
}

// ReputationSettings configures the URL reputation lookup. An empty APIKey
// disables the lookup.
type ReputationSettings struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	GUIBaseURL        string        `mapstructure:"gui_base_url" yaml:"gui_base_url"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPolls          int           `mapstructure:"max_polls" yaml:"max_polls"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

type StoreSettings struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type JobsSettings struct {
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Config holds all scanward configuration options.
type Config struct {
	Scanner      ScannerSettings    `mapstructure:"scanner" yaml:"scanner"`
	Reputation   ReputationSettings `mapstructure:"reputation" yaml:"reputation"`
	Store        StoreSettings      `mapstructure:"store" yaml:"store"`
	Jobs         JobsSettings       `mapstructure:"jobs" yaml:"jobs"`
	Log          LogSettings        `mapstructure:"log" yaml:"log"`
	Server       ServerSettings     `mapstructure:"server" yaml:"server"`
	OutputFormat string             `mapstructure:"output_format" yaml:"output_format"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	sc := scanner.DefaultConfig()
	rep := reputation.DefaultConfig()
	return Config{
		Scanner: ScannerSettings{
			BaseURL:            sc.BaseURL,
			PollInterval:       sc.PollInterval,
			MaxPolls:           sc.MaxPolls,
			AttackPollInterval: sc.AttackPollInterval,
			AttackMaxPolls:     sc.AttackMaxPolls,
			PageSize:           sc.PageSize,
			MaxChildren:        sc.MaxChildren,
			RequestTimeout:     sc.RequestTimeout,
			ProbeTimeout:       sc.ProbeTimeout,
			NewSessionPerScan:  sc.NewSessionPerScan,
		},
		Reputation: ReputationSettings{
			BaseURL:           rep.BaseURL,
			GUIBaseURL:        rep.GUIBaseURL,
			PollInterval:      rep.PollInterval,
			MaxPolls:          rep.MaxPolls,
			RequestsPerMinute: rep.RequestsPerMinute,
			RequestTimeout:    rep.RequestTimeout,
		},
		Store: StoreSettings{
			Driver: "sqlite",
			Path:   DefaultStorePath(),
		},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
		Server: ServerSettings{
			Addr: ":3000",
		},
		OutputFormat: "table",
	}
}

// Load reads configuration from ~/.scanward.yaml and environment variables.
// It does NOT apply CLI flag overrides. Call ApplyFlags for that.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName(".scanward")
	v.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return unmarshal(v)
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("addr") {
		val, _ := flags.GetString("addr")
		cfg.Server.Addr = val
	}
	if flags.Changed("output") {
		val, _ := flags.GetString("output")
		cfg.OutputFormat = val
	}
	if flags.Changed("scanner-url") {
		val, _ := flags.GetString("scanner-url")
		cfg.Scanner.BaseURL = val
	}
	if flags.Changed("db") {
		val, _ := flags.GetString("db")
		cfg.Store.Path = val
	}
	if flags.Changed("store") {
		val, _ := flags.GetString("store")
		cfg.Store.Driver = val
	}
	if flags.Changed("max-concurrent") {
		val, _ := flags.GetInt("max-concurrent")
		cfg.Jobs.MaxConcurrent = val
	}
	if flags.Changed("log-level") {
		val, _ := flags.GetString("log-level")
		cfg.Log.Level = val
	}
	if flags.Changed("log-format") {
		val, _ := flags.GetString("log-format")
		cfg.Log.Format = val
	}
}

// ScannerConfig converts the scanner settings into a client configuration.
func (c *Config) ScannerConfig() scanner.Config {
	s := c.Scanner
	return scanner.Config{
		BaseURL:            s.BaseURL,
		APIKey:             s.APIKey,
		PollInterval:       s.PollInterval,
		MaxPolls:           s.MaxPolls,
		AttackPollInterval: s.AttackPollInterval,
		AttackMaxPolls:     s.AttackMaxPolls,
		PageSize:           s.PageSize,
		MaxChildren:        s.MaxChildren,
		RequestTimeout:     s.RequestTimeout,
		ProbeTimeout:       s.ProbeTimeout,
		NewSessionPerScan:  s.NewSessionPerScan,
	}
}

// ReputationConfig converts the reputation settings into a client configuration.
func (c *Config) ReputationConfig() reputation.Config {
	r := c.Reputation
	return reputation.Config{
		BaseURL:           r.BaseURL,
		GUIBaseURL:        r.GUIBaseURL,
		APIKey:            r.APIKey,
		PollInterval:      r.PollInterval,
		MaxPolls:          r.MaxPolls,
		RequestsPerMinute: r.RequestsPerMinute,
		RequestTimeout:    r.RequestTimeout,
	}
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// ConfigFilePath returns the default config file path (~/.scanward.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scanward.yaml"
	}
	return filepath.Join(home, ".scanward.yaml")
}

// DefaultStorePath returns ~/.scanward/scanward.db.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".scanward", "scanward.db")
	}
	return filepath.Join(home, ".scanward", "scanward.db")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCANWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment variables bind to nested
// fields during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("scanner.base_url", d.Scanner.BaseURL)
	v.SetDefault("scanner.api_key", "")
	v.SetDefault("scanner.poll_interval", d.Scanner.PollInterval)
	v.SetDefault("scanner.max_polls", d.Scanner.MaxPolls)
	v.SetDefault("scanner.attack_poll_interval", d.Scanner.AttackPollInterval)
	v.SetDefault("scanner.attack_max_polls", d.Scanner.AttackMaxPolls)
	v.SetDefault("scanner.page_size", d.Scanner.PageSize)
	v.SetDefault("scanner.max_children", d.Scanner.MaxChildren)
	v.SetDefault("scanner.request_timeout", d.Scanner.RequestTimeout)
	v.SetDefault("scanner.probe_timeout", d.Scanner.ProbeTimeout)
	v.SetDefault("scanner.new_session_per_scan", d.Scanner.NewSessionPerScan)

	v.SetDefault("reputation.base_url", d.Reputation.BaseURL)
	v.SetDefault("reputation.gui_base_url", d.Reputation.GUIBaseURL)
	v.SetDefault("reputation.api_key", "")
	v.SetDefault("reputation.poll_interval", d.Reputation.PollInterval)
	v.SetDefault("reputation.max_polls", d.Reputation.MaxPolls)
	v.SetDefault("reputation.requests_per_minute", d.Reputation.RequestsPerMinute)
	v.SetDefault("reputation.request_timeout", d.Reputation.RequestTimeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("jobs.max_concurrent", d.Jobs.MaxConcurrent)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("output_format", d.OutputFormat)
}
