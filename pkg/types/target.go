package types

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Target is a validated scan target.
type Target struct {
	Host   string `json:"host"`
	Port   int    `json:"port,omitempty"`
	URL    string `json:"url"`
	Scheme string `json:"scheme"`
}

// ParseTarget accepts a host, host:port, or full http(s) URL and normalizes it
// into a Target whose URL is always absolute. Bare hosts default to https.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("target cannot be empty")
	}

	if strings.Contains(raw, "://") {
		return parseURL(raw)
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err == nil {
		port, err := parsePort(portStr)
		if err != nil {
			return Target{}, err
		}
		return Target{
			Host:   host,
			Port:   port,
			URL:    "https://" + net.JoinHostPort(host, portStr),
			Scheme: "https",
		}, nil
	}

	if strings.ContainsAny(raw, " /?#") {
		return Target{}, fmt.Errorf("invalid host %q", raw)
	}

	return Target{
		Host:   raw,
		URL:    "https://" + raw,
		Scheme: "https",
	}, nil
}

func parseURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, fmt.Errorf("unsupported scheme %q (want http or https)", u.Scheme)
	}

	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("URL %q has no hostname", raw)
	}

	t := Target{
		Host:   u.Hostname(),
		URL:    raw,
		Scheme: scheme,
	}

	if u.Port() != "" {
		port, err := parsePort(u.Port())
		if err != nil {
			return Target{}, fmt.Errorf("invalid port in URL: %w", err)
		}
		t.Port = port
	}

	return t, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return port, nil
}
