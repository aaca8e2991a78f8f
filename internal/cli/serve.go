package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buemura/scanward/internal/jobs"
	"github.com/buemura/scanward/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Scanward API server",
	Long: `Serves the scan REST API. Scans submitted over HTTP run in the
background and are polled through GET /api/v1/scans/{id}.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":3000", "listen address (host:port)")
	serveCmd.Flags().Int("max-concurrent", 0, "max scans running at once (0 = unlimited)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger := appConfig, appLogger

	svc, err := openServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := jobs.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	mgr := jobs.NewManager(svc.store, svc.scanner, svc.reputation, jobs.Options{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Logger:        logger,
		Metrics:       metrics,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n, err := mgr.FailInterrupted(ctx); err != nil {
		logger.Warn("could not close out interrupted scans", zap.Error(err))
	} else if n > 0 {
		logger.Info("marked interrupted scans as failed", zap.Int("count", n))
	}

	srv := web.NewServer(cfg.Server.Addr, web.Options{
		Manager:    mgr,
		Scanner:    svc.scanner,
		Reputation: svc.reputation,
		Gatherer:   reg,
		Logger:     logger,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Scanward API listening on %s\n", cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("scan shutdown", zap.Error(err))
	}
	return nil
}
