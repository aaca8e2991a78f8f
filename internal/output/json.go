package output

import (
	"encoding/json"
	"io"

	"github.com/buemura/scanward/pkg/types"
)

// JSONFormatter renders a report as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, report *types.ScanReport) error {
	out := *report
	if out.Vulnerabilities == nil {
		out.Vulnerabilities = []types.Vulnerability{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
