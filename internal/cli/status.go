package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/buemura/scanward/internal/jobs"
	"github.com/buemura/scanward/internal/output"
	"github.com/buemura/scanward/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [scan-id]",
	Short: "Show stored scans or the report of one scan",
	Long: `Without arguments, lists every stored scan, newest first.
With a scan id, prints that scan's report in the selected output format.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if appConfig.Store.Driver == "memory" {
		return fmt.Errorf("status needs a persistent store (--store sqlite)")
	}

	svc, err := openServices(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer svc.Close()

	mgr := jobs.NewManager(svc.store, svc.scanner, svc.reputation, jobs.Options{Logger: appLogger})
	w := cmd.OutOrStdout()

	if len(args) == 1 {
		formatter, err := output.GetFormatter(outputFlag)
		if err != nil {
			return err
		}
		report, err := mgr.Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatter.Format(w, report)
	}

	recs, err := mgr.List(cmd.Context())
	if err != nil {
		return err
	}
	return renderScanList(w, recs, outputFlag)
}

// renderScanList prints recs as JSON or as a table; other formats fall back
// to the table.
func renderScanList(w io.Writer, recs []*types.ScanRecord, format string) error {
	if format == "json" {
		if recs == nil {
			recs = []*types.ScanRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(w, "No scans stored.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Target", "Type", "Status", "Progress", "Findings", "Created"})
	table.SetAutoWrapText(false)
	for _, r := range recs {
		table.Append([]string{
			r.ID,
			r.TargetURL,
			r.ScanType,
			string(r.Status),
			strconv.Itoa(r.Progress) + "%",
			strconv.Itoa(r.TotalVulnerabilities),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}
