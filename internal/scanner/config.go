package scanner

import "time"

// Config holds the engine endpoint and the per-phase polling budgets.
type Config struct {
	BaseURL string
	APIKey  string

	// Crawl phase budget: MaxPolls status queries spaced PollInterval apart.
	PollInterval time.Duration
	MaxPolls     int

	// Attack phase budget, independent of the crawl budget.
	AttackPollInterval time.Duration
	AttackMaxPolls     int

	PageSize    int
	MaxChildren int

	RequestTimeout time.Duration
	ProbeTimeout   time.Duration

	// NewSessionPerScan resets the engine session before each scan.
	NewSessionPerScan bool
}

// DefaultConfig returns sensible defaults for a local engine.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://localhost:8080",
		PollInterval:       5 * time.Second,
		MaxPolls:           120,
		AttackPollInterval: 10 * time.Second,
		AttackMaxPolls:     360,
		PageSize:           100,
		MaxChildren:        10,
		RequestTimeout:     30 * time.Second,
		ProbeTimeout:       3 * time.Second,
		NewSessionPerScan:  true,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = d.MaxPolls
	}
	if c.AttackPollInterval <= 0 {
		c.AttackPollInterval = d.AttackPollInterval
	}
	if c.AttackMaxPolls <= 0 {
		c.AttackMaxPolls = d.AttackMaxPolls
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxChildren <= 0 {
		c.MaxChildren = d.MaxChildren
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}
