package types

import "time"

// Status represents the lifecycle state of a scan record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScanning  Status = "scanning"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can happen from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Verdict is the coarse reputation classification of a scanned URL.
type Verdict string

const (
	VerdictMalicious  Verdict = "malicious"
	VerdictSuspicious Verdict = "suspicious"
	VerdictHarmless   Verdict = "harmless"
	VerdictUnknown    Verdict = "unknown"
	VerdictError      Verdict = "error"
)

// Scan types accepted by the API. The value is metadata only.
const (
	ScanTypeQuick = "quick"
	ScanTypeDeep  = "deep"
)

// ScanRecord is the persisted state of one scan run.
type ScanRecord struct {
	ID        string `json:"id"`
	TargetURL string `json:"target_url"`
	ScanType  string `json:"scan_type"`
	Status    Status `json:"status"`
	Progress  int    `json:"progress"`

	TotalVulnerabilities int `json:"total_vulnerabilities"`
	CriticalCount        int `json:"critical_count"`
	HighCount            int `json:"high_count"`
	MediumCount          int `json:"medium_count"`
	LowCount             int `json:"low_count"`

	ScanDurationSeconds *float64   `json:"scan_duration_seconds"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at"`

	ReputationVerdict          *Verdict       `json:"reputation_verdict"`
	ReputationStats            map[string]any `json:"reputation_stats"`
	ReputationMaliciousCount   *int           `json:"reputation_malicious_count"`
	ReputationLastAnalysisDate *time.Time     `json:"reputation_last_analysis_date"`
	ReputationPermalink        *string        `json:"reputation_permalink"`
}

// Counts returns the aggregated severity counters of the record.
func (r *ScanRecord) Counts() SeverityCounts {
	return SeverityCounts{
		Critical: r.CriticalCount,
		High:     r.HighCount,
		Medium:   r.MediumCount,
		Low:      r.LowCount,
	}
}

// ScanDraft carries the caller-supplied fields of a new scan.
type ScanDraft struct {
	TargetURL string
	ScanType  string
}

// ScanPatch is a partial update of a scan record. Nil fields are left untouched.
type ScanPatch struct {
	Status               *Status
	Progress             *int
	TotalVulnerabilities *int
	CriticalCount        *int
	HighCount            *int
	MediumCount          *int
	LowCount             *int
	ScanDurationSeconds  *float64
	ErrorMessage         *string
	CompletedAt          *time.Time

	ReputationVerdict          *Verdict
	ReputationStats            map[string]any
	ReputationMaliciousCount   *int
	ReputationLastAnalysisDate *time.Time
	ReputationPermalink        *string
}

// WithCounts sets the five aggregated counters from c.
func (p ScanPatch) WithCounts(c SeverityCounts) ScanPatch {
	total := c.Total()
	p.TotalVulnerabilities = &total
	p.CriticalCount = &c.Critical
	p.HighCount = &c.High
	p.MediumCount = &c.Medium
	p.LowCount = &c.Low
	return p
}

// Apply copies every non-nil field of p onto r.
func (r *ScanRecord) Apply(p ScanPatch) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Progress != nil {
		r.Progress = *p.Progress
	}
	if p.TotalVulnerabilities != nil {
		r.TotalVulnerabilities = *p.TotalVulnerabilities
	}
	if p.CriticalCount != nil {
		r.CriticalCount = *p.CriticalCount
	}
	if p.HighCount != nil {
		r.HighCount = *p.HighCount
	}
	if p.MediumCount != nil {
		r.MediumCount = *p.MediumCount
	}
	if p.LowCount != nil {
		r.LowCount = *p.LowCount
	}
	if p.ScanDurationSeconds != nil {
		d := *p.ScanDurationSeconds
		r.ScanDurationSeconds = &d
	}
	if p.ErrorMessage != nil {
		r.ErrorMessage = *p.ErrorMessage
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		r.CompletedAt = &t
	}
	if p.ReputationVerdict != nil {
		v := *p.ReputationVerdict
		r.ReputationVerdict = &v
	}
	if p.ReputationStats != nil {
		stats := make(map[string]any, len(p.ReputationStats))
		for k, v := range p.ReputationStats {
			stats[k] = v
		}
		r.ReputationStats = stats
	}
	if p.ReputationMaliciousCount != nil {
		n := *p.ReputationMaliciousCount
		r.ReputationMaliciousCount = &n
	}
	if p.ReputationLastAnalysisDate != nil {
		t := *p.ReputationLastAnalysisDate
		r.ReputationLastAnalysisDate = &t
	}
	if p.ReputationPermalink != nil {
		s := *p.ReputationPermalink
		r.ReputationPermalink = &s
	}
}

// ScanReport bundles a record with its vulnerabilities for rendering.
type ScanReport struct {
	Scan            ScanRecord      `json:"scan"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
