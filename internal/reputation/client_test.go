package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/buemura/scanward/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const target = "https://example.com/login"

// fakeVT serves the three endpoints used by Client.
type fakeVT struct {
	mu sync.Mutex

	submitStatus int
	statuses     []string
	stats        Stats
	cached       *Stats
	calls        map[string]int
	forms        []string
	keys         []string
}

func newFakeVT() *fakeVT {
	return &fakeVT{
		statuses: []string{"completed"},
		calls:    map[string]int{},
	}
}

func (f *fakeVT) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keys = append(f.keys, r.Header.Get("x-apikey"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/urls":
		f.calls["submit"]++
		r.ParseForm()
		f.forms = append(f.forms, r.PostForm.Get("url"))
		if f.submitStatus != 0 {
			w.WriteHeader(f.submitStatus)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "QuotaExceededError", "message": "quota exceeded"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"type": "analysis", "id": "u-abc-123"},
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/analyses/"):
		n := f.calls["poll"]
		f.calls["poll"]++
		status := f.statuses[len(f.statuses)-1]
		if n < len(f.statuses) {
			status = f.statuses[n]
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"attributes": map[string]any{"status": status, "stats": f.stats, "date": 1767225600},
			},
			"meta": map[string]any{"url_info": map[string]string{"id": "sha-of-url"}},
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/urls/"):
		f.calls["cached"]++
		if strings.TrimPrefix(r.URL.Path, "/urls/") != LookupKey(target) || f.cached == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "NotFoundError", "message": "URL not found"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id": "cached-sha",
				"attributes": map[string]any{
					"last_analysis_stats": f.cached,
					"last_analysis_date":  1767139200,
				},
			},
		})

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeVT) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		GUIBaseURL:   "https://vt.example/gui",
		APIKey:       "vt-key",
		PollInterval: time.Millisecond,
		MaxPolls:     3,
	}, zaptest.NewLogger(t))
}

func TestIsConfigured(t *testing.T) {
	assert.False(t, NewClient(Config{}, nil).IsConfigured())
	assert.True(t, NewClient(Config{APIKey: "k"}, nil).IsConfigured())
}

func TestCheck_CompletedAnalysis(t *testing.T) {
	fake := newFakeVT()
	fake.statuses = []string{"queued", "completed"}
	fake.stats = Stats{Harmless: 60, Malicious: 2, Suspicious: 1, Undetected: 10}
	c := newTestClient(t, fake)

	res := c.Check(context.Background(), target)

	assert.Empty(t, res.Error)
	assert.Equal(t, types.VerdictMalicious, res.Verdict)
	require.NotNil(t, res.MaliciousCount)
	assert.Equal(t, 2, *res.MaliciousCount)
	assert.Equal(t, 60, res.Stats["harmless"])
	require.NotNil(t, res.LastAnalysisDate)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), *res.LastAnalysisDate)
	assert.Equal(t, "https://vt.example/gui/url/sha-of-url", res.Permalink)

	assert.Equal(t, []string{target}, fake.forms)
	assert.Equal(t, 2, fake.calls["poll"])
	assert.Zero(t, fake.calls["cached"])
	for _, k := range fake.keys {
		assert.Equal(t, "vt-key", k)
	}
}

func TestCheck_FallsBackToCachedReport(t *testing.T) {
	fake := newFakeVT()
	fake.statuses = []string{"queued"}
	fake.cached = &Stats{Harmless: 70}
	c := newTestClient(t, fake)

	res := c.Check(context.Background(), target)

	assert.Empty(t, res.Error)
	assert.Equal(t, types.VerdictHarmless, res.Verdict)
	assert.Equal(t, 3, fake.calls["poll"])
	assert.Equal(t, 1, fake.calls["cached"])
	assert.Equal(t, "https://vt.example/gui/url/cached-sha", res.Permalink)
	require.NotNil(t, res.MaliciousCount)
	assert.Zero(t, *res.MaliciousCount)
}

func TestCheck_TimeoutWithoutCachedReport(t *testing.T) {
	fake := newFakeVT()
	fake.statuses = []string{"queued"}
	c := newTestClient(t, fake)

	res := c.Check(context.Background(), target)

	assert.Equal(t, types.VerdictError, res.Verdict)
	assert.Contains(t, res.Error, "no cached report")
	assert.Equal(t, res.Error, res.Stats["error"])
	assert.Nil(t, res.MaliciousCount)
}

func TestCheck_SubmitErrorIsSoft(t *testing.T) {
	fake := newFakeVT()
	fake.submitStatus = http.StatusTooManyRequests
	c := newTestClient(t, fake)

	res := c.Check(context.Background(), target)

	assert.Equal(t, types.VerdictError, res.Verdict)
	assert.Contains(t, res.Error, "quota exceeded")
	assert.Equal(t, map[string]any{"error": res.Error}, res.Stats)
	assert.Zero(t, fake.calls["poll"])
}

func TestCheck_TransportErrorIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: base, APIKey: "k", PollInterval: time.Millisecond}, nil)
	res := c.Check(context.Background(), target)

	assert.Equal(t, types.VerdictError, res.Verdict)
	assert.NotEmpty(t, res.Error)
}

func TestCheck_NotConfigured(t *testing.T) {
	res := NewClient(Config{}, nil).Check(context.Background(), target)
	assert.Equal(t, types.VerdictError, res.Verdict)
	assert.Equal(t, ErrNotConfigured.Error(), res.Error)
}

func TestSummarize_Verdicts(t *testing.T) {
	c := NewClient(Config{GUIBaseURL: "https://vt.example/gui"}, nil)
	tests := []struct {
		name  string
		stats Stats
		want  types.Verdict
	}{
		{"malicious wins", Stats{Malicious: 1, Suspicious: 5, Harmless: 50}, types.VerdictMalicious},
		{"suspicious", Stats{Suspicious: 1, Harmless: 50}, types.VerdictSuspicious},
		{"harmless", Stats{Harmless: 50, Undetected: 5}, types.VerdictHarmless},
		{"unknown", Stats{Undetected: 70}, types.VerdictUnknown},
		{"empty", Stats{}, types.VerdictUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Summarize(&Analysis{Stats: tt.stats}, target)
			assert.Equal(t, tt.want, res.Verdict)
			assert.Nil(t, res.LastAnalysisDate)
		})
	}
}

func TestSummarize_PermalinkFallsBackToURLHash(t *testing.T) {
	c := NewClient(Config{GUIBaseURL: "https://vt.example/gui/"}, nil)
	res := c.Summarize(&Analysis{}, "https://example.com")
	assert.Equal(t,
		"https://vt.example/gui/url/100680ad546ce6a577f42f52df33b4cfdca756859e664b8d7de329b150d09ce9",
		res.Permalink)
}

func TestLookupKey(t *testing.T) {
	assert.Equal(t, "aHR0cDovL2V4YW1wbGUuY29tLw", LookupKey("http://example.com/"))
	assert.NotContains(t, LookupKey("https://example.com/?a=1&b=2"), "=")
}

func TestPollAnalysis_RespectsContext(t *testing.T) {
	c := NewClient(Config{APIKey: "k", PollInterval: time.Hour, MaxPolls: 2}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := c.PollAnalysis(ctx, "id")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, context.Canceled)
}
