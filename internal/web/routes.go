package web

import (
	"encoding/json"
	"net/http"

	"github.com/buemura/scanward/internal/web/api"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes mounts all route groups on the server's router.
func (s *Server) registerRoutes() {
	apiHandlers := api.NewHandlers(s.opts.Manager, s.logger)

	// Health check
	s.router.Get("/health", s.handleHealth)

	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// REST API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", apiHandlers.CreateScan)
		r.Get("/scans", apiHandlers.ListScans)
		r.Get("/scans/{id}", apiHandlers.GetScan)
		r.Get("/scans/{id}/vulnerabilities", apiHandlers.ListVulnerabilities)
		r.Get("/scans/{id}/report", apiHandlers.GetScanReport)
		r.Post("/scans/{id}/cancel", apiHandlers.CancelScan)
	})
}

// handleHealth reports service liveness plus the state of both external
// dependencies. It always answers 200 so the service itself stays routable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":     "ok",
		"scanner":    "unknown",
		"reputation": "disabled",
	}
	if s.opts.Scanner != nil {
		body["scanner"] = "down"
		if s.opts.Scanner.CheckAvailability(r.Context()) {
			body["scanner"] = "up"
		}
	}
	if s.opts.Reputation != nil && s.opts.Reputation.IsConfigured() {
		body["reputation"] = "configured"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
