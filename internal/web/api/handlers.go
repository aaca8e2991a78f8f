package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/buemura/scanward/internal/jobs"
	"github.com/buemura/scanward/internal/logging"
	"github.com/buemura/scanward/internal/output"
	"github.com/buemura/scanward/internal/store"
	"github.com/buemura/scanward/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// reportContentTypes maps report formats to response content types.
var reportContentTypes = map[string]string{
	"html":     "text/html; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
	"json":     "application/json",
	"table":    "text/plain; charset=utf-8",
}

// Handlers holds dependencies for the REST API handlers.
type Handlers struct {
	Manager *jobs.Manager
	logger  *zap.Logger
}

// NewHandlers creates API handlers with the given dependencies.
func NewHandlers(manager *jobs.Manager, logger *zap.Logger) *Handlers {
	return &Handlers{Manager: manager, logger: logging.OrNop(logger)}
}

// CreateScan handles POST /api/v1/scans.
func (h *Handlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateScanRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Manager.StartScan(r.Context(), req.TargetURL, req.ScanType)
	if err != nil {
		h.logger.Error("failed to start scan", zap.String("target", req.TargetURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start scan: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ListScans handles GET /api/v1/scans.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Manager.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*types.ScanRecord{}
	}

	writeJSON(w, http.StatusOK, recs)
}

// GetScan handles GET /api/v1/scans/{id}.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.Manager.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListVulnerabilities handles GET /api/v1/scans/{id}/vulnerabilities.
func (h *Handlers) ListVulnerabilities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vulns, err := h.Manager.Vulnerabilities(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vulns)
}

// GetScanReport handles GET /api/v1/scans/{id}/report?format=html|markdown|json|table.
func (h *Handlers) GetScanReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}
	formatter, err := output.GetFormatter(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.Manager.Report(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if !report.Scan.Status.Terminal() {
		writeError(w, http.StatusConflict, "scan is not yet finished")
		return
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, report); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render report: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", reportContentTypes[format])
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// CancelScan handles POST /api/v1/scans/{id}/cancel.
func (h *Handlers) CancelScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Manager.Cancel(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
	case errors.Is(err, jobs.ErrScanFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeStoreError(w, err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrScanNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
