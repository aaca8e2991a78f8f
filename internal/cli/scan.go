package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buemura/scanward/internal/jobs"
	"github.com/buemura/scanward/internal/output"
	"github.com/buemura/scanward/internal/store"
	"github.com/buemura/scanward/pkg/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// progressInterval is how often the foreground scan re-reads its record.
var progressInterval = 500 * time.Millisecond

var (
	targetFlag   string
	scanTypeFlag string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scan in the foreground and print its report",
	Long: `Runs crawl, active scan and reputation lookup against the target,
persisting the scan like the API does, then prints the report.
Interrupting the command marks the scan as cancelled.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&targetFlag, "target", "t", "", "target URL or host")
	scanCmd.Flags().StringVar(&scanTypeFlag, "type", types.ScanTypeQuick, "scan type: quick, deep")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if targetFlag == "" {
		return fmt.Errorf("--target (-t) is required")
	}

	target, err := types.ParseTarget(targetFlag)
	if err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	if scanTypeFlag != types.ScanTypeQuick && scanTypeFlag != types.ScanTypeDeep {
		return fmt.Errorf("invalid scan type %q (supported: quick, deep)", scanTypeFlag)
	}

	formatter, err := output.GetFormatter(outputFlag)
	if err != nil {
		return err
	}

	svc, err := openServices(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer svc.Close()

	mgr := jobs.NewManager(svc.store, svc.scanner, svc.reputation, jobs.Options{Logger: appLogger})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := svc.store.CreateScan(ctx, types.ScanDraft{TargetURL: target.URL, ScanType: scanTypeFlag})
	if err != nil {
		return fmt.Errorf("creating scan: %w", err)
	}

	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		watchProgress(cmd.ErrOrStderr(), svc.store, rec.ID, done)
	}()

	runErr := mgr.Run(ctx, rec.ID)
	close(done)
	<-watched

	report, err := mgr.Report(context.Background(), rec.ID)
	if err != nil {
		return err
	}
	if err := formatter.Format(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("scan %s failed: %w", rec.ID, runErr)
	}
	return nil
}

// watchProgress prints a line every time the scan's status or progress
// changes, plus a final line once done is closed.
func watchProgress(w io.Writer, st store.Store, id string, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	last := ""
	report := func() {
		rec, err := st.ReadScan(context.Background(), id)
		if err != nil {
			return
		}
		line := fmt.Sprintf("[%3d%%] %s", rec.Progress, rec.Status)
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(w, progressColor(rec.Status).Sprint(line))
	}

	for {
		select {
		case <-done:
			report()
			return
		case <-ticker.C:
			report()
		}
	}
}

func progressColor(s types.Status) *color.Color {
	switch s {
	case types.StatusCompleted:
		return color.New(color.FgGreen, color.Bold)
	case types.StatusFailed:
		return color.New(color.FgRed, color.Bold)
	case types.StatusScanning:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}
