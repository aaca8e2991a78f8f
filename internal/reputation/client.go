// Package reputation looks up URL verdicts from a VirusTotal-compatible API.
// Lookups are best effort: Check never returns an error, failures come back
// as a Result carrying the error verdict.
package reputation

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buemura/scanward/internal/logging"
	"github.com/buemura/scanward/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is reported when no API key is set.
var ErrNotConfigured = errors.New("reputation lookup not configured")

// APIError is a non-2xx answer from the reputation service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Stats are the per-engine vote counts of an analysis.
type Stats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
	Timeout    int `json:"timeout"`
}

// Map returns the counts keyed by their API names.
func (s Stats) Map() map[string]any {
	return map[string]any{
		"harmless":   s.Harmless,
		"malicious":  s.Malicious,
		"suspicious": s.Suspicious,
		"undetected": s.Undetected,
		"timeout":    s.Timeout,
	}
}

// Analysis is a completed (fresh or cached) reputation analysis.
type Analysis struct {
	Stats Stats
	Date  time.Time
	// URLID is the service's identifier of the analysed URL, if it sent one.
	URLID string
}

// Result is what the orchestrator persists into the reputation fields.
type Result struct {
	Verdict          types.Verdict
	Stats            map[string]any
	MaliciousCount   *int
	LastAnalysisDate *time.Time
	Permalink        string
	Error            string
}

// ErrorResult builds the soft-failure result for msg.
func ErrorResult(msg string) Result {
	return Result{
		Verdict: types.VerdictError,
		Stats:   map[string]any{"error": msg},
		Error:   msg,
	}
}

// Client talks to the reputation API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a reputation client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.OrNop(logger).With(zap.String("component", "reputation")),
	}
}

// IsConfigured reports whether credentials are present.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// Check submits target, waits for the analysis and falls back to the cached
// report when the analysis does not complete in time.
func (c *Client) Check(ctx context.Context, target string) Result {
	log := c.logger.With(zap.String("target", target))

	if !c.IsConfigured() {
		return ErrorResult(ErrNotConfigured.Error())
	}

	analysisID, err := c.Submit(ctx, target)
	if err != nil {
		log.Warn("reputation submit failed", zap.Error(err))
		return ErrorResult(err.Error())
	}

	analysis, err := c.PollAnalysis(ctx, analysisID)
	if err != nil {
		log.Warn("reputation poll failed", zap.String("analysis_id", analysisID), zap.Error(err))
		return ErrorResult(err.Error())
	}

	if analysis == nil {
		log.Info("analysis still queued, using cached report", zap.String("analysis_id", analysisID))
		analysis, err = c.CachedLookup(ctx, target)
		if err != nil {
			log.Warn("cached reputation lookup failed", zap.Error(err))
			return ErrorResult("analysis did not complete and no cached report: " + err.Error())
		}
	}

	res := c.Summarize(analysis, target)
	log.Info("reputation verdict", zap.String("verdict", string(res.Verdict)))
	return res
}

// Submit posts target for analysis and returns the analysis id.
func (c *Client) Submit(ctx context.Context, target string) (string, error) {
	form := url.Values{"url": {target}}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/urls", strings.NewReader(form.Encode()), &resp); err != nil {
		return "", fmt.Errorf("submit url: %w", err)
	}
	if resp.Data.ID == "" {
		return "", errors.New("submit url: response carried no analysis id")
	}
	return resp.Data.ID, nil
}

// PollAnalysis waits for analysisID to complete. It returns nil, nil when the
// attempt budget runs out before completion.
func (c *Client) PollAnalysis(ctx context.Context, analysisID string) (*Analysis, error) {
	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, err
		}

		var resp struct {
			Data struct {
				Attributes struct {
					Status string `json:"status"`
					Stats  Stats  `json:"stats"`
					Date   int64  `json:"date"`
				} `json:"attributes"`
			} `json:"data"`
			Meta struct {
				URLInfo struct {
					ID string `json:"id"`
				} `json:"url_info"`
			} `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, "/analyses/"+url.PathEscape(analysisID), nil, &resp); err != nil {
			return nil, fmt.Errorf("poll analysis: %w", err)
		}

		attrs := resp.Data.Attributes
		c.logger.Debug("analysis status",
			zap.String("analysis_id", analysisID),
			zap.String("status", attrs.Status),
			zap.Int("attempt", attempt))
		if attrs.Status == "completed" {
			return &Analysis{
				Stats: attrs.Stats,
				Date:  unixTime(attrs.Date),
				URLID: resp.Meta.URLInfo.ID,
			}, nil
		}
	}
	return nil, nil
}

// CachedLookup fetches the most recent stored report for target.
func (c *Client) CachedLookup(ctx context.Context, target string) (*Analysis, error) {
	var resp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				LastAnalysisStats Stats `json:"last_analysis_stats"`
				LastAnalysisDate  int64 `json:"last_analysis_date"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/urls/"+LookupKey(target), nil, &resp); err != nil {
		return nil, fmt.Errorf("cached lookup: %w", err)
	}
	attrs := resp.Data.Attributes
	return &Analysis{
		Stats: attrs.LastAnalysisStats,
		Date:  unixTime(attrs.LastAnalysisDate),
		URLID: resp.Data.ID,
	}, nil
}

// Summarize derives the verdict, timestamp and permalink of an analysis.
func (c *Client) Summarize(a *Analysis, target string) Result {
	verdict := types.VerdictUnknown
	switch {
	case a.Stats.Malicious > 0:
		verdict = types.VerdictMalicious
	case a.Stats.Suspicious > 0:
		verdict = types.VerdictSuspicious
	case a.Stats.Harmless > 0:
		verdict = types.VerdictHarmless
	}

	malicious := a.Stats.Malicious
	res := Result{
		Verdict:        verdict,
		Stats:          a.Stats.Map(),
		MaliciousCount: &malicious,
		Permalink:      c.permalink(a.URLID, target),
	}
	if !a.Date.IsZero() {
		d := a.Date
		res.LastAnalysisDate = &d
	}
	return res
}

// LookupKey derives the cached-report key of target: unpadded base64url.
func LookupKey(target string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(target))
}

func (c *Client) permalink(urlID, target string) string {
	if urlID == "" {
		sum := sha256.Sum256([]byte(target))
		urlID = hex.EncodeToString(sum[:])
	}
	return strings.TrimRight(c.cfg.GUIBaseURL, "/") + "/url/" + urlID
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("x-apikey", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
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
