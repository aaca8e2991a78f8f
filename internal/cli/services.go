package cli

import (
	"github.com/buemura/scanward/internal/config"
	"github.com/buemura/scanward/internal/reputation"
	"github.com/buemura/scanward/internal/scanner"
	"github.com/buemura/scanward/internal/store"
	"go.uber.org/zap"
)

// services bundles the long-lived dependencies every command builds from the
// loaded configuration.
type services struct {
	store      store.Store
	scanner    *scanner.Client
	reputation *reputation.Client
}

func openServices(cfg *config.Config, logger *zap.Logger) (*services, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	svc := &services{
		store:      st,
		scanner:    scanner.NewClient(cfg.ScannerConfig(), logger),
		reputation: reputation.NewClient(cfg.ReputationConfig(), logger),
	}
	if !svc.reputation.IsConfigured() {
		logger.Info("reputation API key not set, lookups disabled")
	}
	return svc, nil
}

func (s *services) Close() error {
	return s.store.Close()
}
