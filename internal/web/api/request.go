package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/buemura/scanward/pkg/types"
)

// CreateScanRequest is the JSON body for POST /api/v1/scans.
type CreateScanRequest struct {
	TargetURL string `json:"target_url"`
	ScanType  string `json:"scan_type"`
}

// decodeCreateScanRequest reads and validates the request body. The returned
// request carries the normalized target URL.
func decodeCreateScanRequest(r *http.Request) (*CreateScanRequest, error) {
	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if req.TargetURL == "" {
		return nil, fmt.Errorf("target_url is required")
	}

	target, err := types.ParseTarget(req.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	req.TargetURL = target.URL

	switch req.ScanType {
	case "":
		req.ScanType = types.ScanTypeQuick
	case types.ScanTypeQuick, types.ScanTypeDeep:
	default:
		return nil, fmt.Errorf("invalid scan_type %q (supported: quick, deep)", req.ScanType)
	}

	return &req, nil
}
