package scanner

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/buemura/scanward/pkg/types"
)

// severityTable maps the engine's native risk indicator to a canonical
// severity. Numeric risk codes sit one level above the matching risk names
// ("3" is critical while "high" stays high). Keep both halves as they are:
// stored scans and dashboards depend on these exact values.
var severityTable = map[string]types.Severity{
	"3": types.SeverityCritical,
	"2": types.SeverityHigh,
	"1": types.SeverityMedium,
	"0": types.SeverityLow,

	"high":          types.SeverityHigh,
	"medium":        types.SeverityMedium,
	"low":           types.SeverityLow,
	"informational": types.SeverityLow,
	"info":          types.SeverityLow,
}

// MapSeverity converts a native risk indicator. Unknown indicators map to low.
func MapSeverity(indicator string) types.Severity {
	key := strings.ToLower(strings.TrimSpace(indicator))
	if sev, ok := severityTable[key]; ok {
		return sev
	}
	return types.SeverityLow
}

// Flex decodes a JSON string or number into its textual form.
type Flex string

func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flex(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Flex(n.String())
	return nil
}

// RawAlert is one alert as returned by the engine's alert listing.
type RawAlert struct {
	ID          string `json:"id"`
	PluginID    string `json:"pluginId"`
	Alert       string `json:"alert"`
	Name        string `json:"name"`
	Risk        string `json:"risk"`
	RiskCode    Flex   `json:"riskcode"`
	Confidence  string `json:"confidence"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	Param       string `json:"param"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	Solution    string `json:"solution"`
	CWEID       Flex   `json:"cweid"`
}

// RiskIndicator returns the numeric risk code when present, else the risk name.
func (a RawAlert) RiskIndicator() string {
	if code := strings.TrimSpace(string(a.RiskCode)); code != "" {
		return code
	}
	return a.Risk
}

// Normalize converts raw alerts into canonical vulnerabilities.
func Normalize(raw []RawAlert) []types.Vulnerability {
	vulns := make([]types.Vulnerability, 0, len(raw))
	for _, a := range raw {
		name := a.Alert
		if name == "" {
			name = a.Name
		}
		vulns = append(vulns, types.Vulnerability{
			VulnType:    name,
			Severity:    MapSeverity(a.RiskIndicator()),
			Confidence:  a.Confidence,
			Location:    a.URL,
			Method:      a.Method,
			Parameter:   a.Param,
			Description: a.Description,
			Evidence:    a.Evidence,
			Solution:    a.Solution,
			CWEID:       parseCWE(string(a.CWEID)),
		})
	}
	return vulns
}

// parseCWE returns nil for missing, non-numeric, or non-positive ids.
func parseCWE(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
