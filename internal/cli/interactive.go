package cli

import (
	"context"
	"time"

	"github.com/buemura/scanward/internal/jobs"
	"github.com/buemura/scanward/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive TUI mode",
	Long: `Start an interactive terminal UI for submitting a scan and browsing
its findings. Quitting while a scan runs cancels it.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	// Log lines would corrupt the alternate screen.
	logger := zap.NewNop()

	svc, err := openServices(appConfig, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	mgr := jobs.NewManager(svc.store, svc.scanner, svc.reputation, jobs.Options{Logger: logger})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	}()

	return tui.Run(mgr)
}
