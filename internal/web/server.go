// Package web serves the scanward REST API.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/buemura/scanward/internal/jobs"
	"github.com/buemura/scanward/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ScannerProbe reports whether the scanning engine is reachable.
type ScannerProbe interface {
	CheckAvailability(ctx context.Context) bool
}

// ReputationStatus reports whether reputation lookups are enabled.
type ReputationStatus interface {
	IsConfigured() bool
}

// Options wires the server to the rest of the service.
type Options struct {
	Manager    *jobs.Manager
	Scanner    ScannerProbe
	Reputation ReputationStatus
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server is the HTTP server for the scanward API.
type Server struct {
	router     chi.Router
	addr       string
	opts       Options
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer builds a new Server with middleware and routes configured.
func NewServer(addr string, opts Options) *Server {
	s := &Server{
		router: chi.NewRouter(),
		addr:   addr,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).With(zap.String("component", "http")),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.registerRoutes()

	return s
}

// Start begins listening on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", zap.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the chi.Router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("ip", r.RemoteAddr))
		})
	}
}
