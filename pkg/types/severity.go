package types

import "time"

// Severity is the canonical severity of a normalized vulnerability.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityRank returns a numeric rank for sorting (lower = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Vulnerability is a single normalized finding owned by a scan record.
type Vulnerability struct {
	ID          string    `json:"id"`
	ScanID      string    `json:"scan_id"`
	VulnType    string    `json:"vuln_type"`
	Severity    Severity  `json:"severity"`
	Confidence  string    `json:"confidence"`
	Location    string    `json:"location"`
	Method      string    `json:"method"`
	Parameter   string    `json:"parameter"`
	Description string    `json:"description"`
	Evidence    string    `json:"evidence"`
	Solution    string    `json:"solution"`
	CWEID       *int      `json:"cwe_id"`
	CVSSScore   *float64  `json:"cvss_score"`
	CreatedAt   time.Time `json:"created_at"`
}

// SeverityCounts aggregates vulnerabilities by severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the number of counted vulnerabilities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// CountSeverities tallies vulns by severity. Unknown severities are ignored.
func CountSeverities(vulns []Vulnerability) SeverityCounts {
	var c SeverityCounts
	for _, v := range vulns {
		switch v.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}
