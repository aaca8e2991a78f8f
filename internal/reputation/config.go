package reputation

import "time"

// Config holds the reputation service endpoint, credentials and poll budget.
type Config struct {
	BaseURL string
	// GUIBaseURL prefixes permalinks handed back to users.
	GUIBaseURL string
	APIKey     string

	PollInterval time.Duration
	MaxPolls     int

	// RequestsPerMinute caps outbound calls. Zero disables limiting.
	RequestsPerMinute int
	RequestTimeout    time.Duration
}

// DefaultConfig returns defaults matching the public VirusTotal v3 API.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://www.virustotal.com/api/v3",
		GUIBaseURL:        "https://www.virustotal.com/gui",
		PollInterval:      15 * time.Second,
		MaxPolls:          4,
		RequestsPerMinute: 4,
		RequestTimeout:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.GUIBaseURL == "" {
		c.GUIBaseURL = d.GUIBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = d.MaxPolls
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	return c
}
