package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buemura/scanward/internal/logging"
	"go.uber.org/zap"
)

// Client drives a ZAP instance through its JSON API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client for the engine described by cfg. A nil logger
// disables logging.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logging.OrNop(logger).With(zap.String("component", "scanner")),
	}
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Version returns the engine version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "version", "core/view/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// CheckAvailability probes the engine with a short timeout.
func (c *Client) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	version, err := c.Version(ctx)
	if err != nil {
		c.logger.Warn("engine availability probe failed", zap.Error(err))
		return false
	}
	c.logger.Debug("engine available", zap.String("version", version))
	return true
}

// PrimeSession starts a fresh engine session. Failures are logged and swallowed.
func (c *Client) PrimeSession(ctx context.Context, name string) {
	params := url.Values{"name": {name}, "overwrite": {"true"}}
	if err := c.call(ctx, "new session", "core/action/newSession", params, nil); err != nil {
		c.logger.Warn("could not prime engine session", zap.String("session", name), zap.Error(err))
	}
}

// TouchURL asks the engine to fetch target once so it lands in the site tree.
// Failures are logged and swallowed.
func (c *Client) TouchURL(ctx context.Context, target string) {
	params := url.Values{"url": {target}, "followRedirects": {"true"}}
	if err := c.call(ctx, "access url", "core/action/accessUrl", params, nil); err != nil {
		c.logger.Warn("could not pre-warm target", zap.String("target", target), zap.Error(err))
	}
}

// StartCrawl begins spidering target and returns the crawl job id.
func (c *Client) StartCrawl(ctx context.Context, target string) (string, error) {
	params := url.Values{
		"url":         {target},
		"maxChildren": {strconv.Itoa(c.cfg.MaxChildren)},
		"recurse":     {"true"},
	}
	return c.startJob(ctx, "start crawl", "spider/action/scan", params)
}

// PollCrawl waits until the crawl job reports 100% or its budget runs out.
func (c *Client) PollCrawl(ctx context.Context, crawlID string) error {
	return c.poll(ctx, "crawl", "spider/view/status", crawlID, c.cfg.PollInterval, c.cfg.MaxPolls)
}

// StartAttackScan begins an active scan of target and returns its job id.
func (c *Client) StartAttackScan(ctx context.Context, target string) (string, error) {
	params := url.Values{
		"url":         {target},
		"recurse":     {"true"},
		"inScopeOnly": {"false"},
	}
	return c.startJob(ctx, "start attack", "ascan/action/scan", params)
}

// PollAttackScan waits until the attack job reports 100% or its budget runs out.
func (c *Client) PollAttackScan(ctx context.Context, attackID string) error {
	return c.poll(ctx, "attack", "ascan/view/status", attackID, c.cfg.AttackPollInterval, c.cfg.AttackMaxPolls)
}

// CollectFindings pages through all alerts under baseURL. Paging stops at the
// first page shorter than the configured page size.
func (c *Client) CollectFindings(ctx context.Context, baseURL string) ([]RawAlert, error) {
	var all []RawAlert
	pageSize := c.cfg.PageSize

	for start := 0; ; start += pageSize {
		params := url.Values{
			"baseurl": {baseURL},
			"start":   {strconv.Itoa(start)},
			"count":   {strconv.Itoa(pageSize)},
		}
		var page struct {
			Alerts []RawAlert `json:"alerts"`
		}
		if err := c.call(ctx, "list findings", "core/view/alerts", params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Alerts...)
		if len(page.Alerts) < pageSize {
			break
		}
	}

	return all, nil
}

func (c *Client) startJob(ctx context.Context, op, endpoint string, params url.Values) (string, error) {
	var resp struct {
		Scan string `json:"scan"`
	}
	if err := c.call(ctx, op, endpoint, params, &resp); err != nil {
		return "", err
	}
	if resp.Scan == "" {
		return "", &TransportError{Op: op, Err: errors.New("response carried no job id")}
	}
	return resp.Scan, nil
}

func (c *Client) poll(ctx context.Context, kind, endpoint, jobID string, interval time.Duration, maxPolls int) error {
	op := kind + " status"
	for attempt := 1; attempt <= maxPolls; attempt++ {
		var resp struct {
			Status string `json:"status"`
		}
		if err := c.call(ctx, op, endpoint, url.Values{"scanId": {jobID}}, &resp); err != nil {
			return err
		}

		pct, err := strconv.Atoi(resp.Status)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("unparseable progress %q", resp.Status)}
		}
		c.logger.Debug("phase progress",
			zap.String("phase", kind),
			zap.String("job_id", jobID),
			zap.Int("percent", pct),
			zap.Int("attempt", attempt))
		if pct >= 100 {
			return nil
		}

		if attempt < maxPolls {
			if err := sleep(ctx, interval); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %s did not finish after %d polls", ErrPhaseTimeout, kind, maxPolls)
}

// call issues GET {base}/JSON/{endpoint}/ and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/JSON/" + endpoint + "/"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-ZAP-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: apiMessage(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// apiMessage extracts the engine's error message from a failed response body.
func apiMessage(body []byte) error {
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		if apiErr.Code != "" {
			return fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Code)
		}
		return errors.New(apiErr.Message)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = "empty response"
	}
	return errors.New(text)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
