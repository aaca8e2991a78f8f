package cli

import (
	"fmt"

	"github.com/buemura/scanward/internal/config"
	"github.com/buemura/scanward/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var (
	configFileFlag string
	outputFlag     string
)

// appConfig and appLogger are available after PersistentPreRunE.
var (
	appConfig *config.Config
	appLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scanward",
	Short: "Scanward orchestrates web vulnerability scans",
	Long: `Scanward drives a ZAP scanning engine through crawl and active scan,
stores the normalized findings, enriches each scan with a URL reputation
lookup and exposes the results over a REST API or the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *config.Config
			err error
		)
		if configFileFlag != "" {
			cfg, err = config.LoadFromFile(configFileFlag)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)
		outputFlag = cfg.OutputFormat

		logger, err := logging.New(cfg.LoggingConfig())
		if err != nil {
			return err
		}

		appConfig = cfg
		appLogger = logger
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFileFlag, "config", "", "config file (default ~/.scanward.yaml)")
	flags.StringVarP(&outputFlag, "output", "o", "table", "output format: table, json, markdown, html")
	flags.String("scanner-url", "", "base URL of the scanning engine API")
	flags.String("store", "sqlite", "scan store driver: sqlite, memory")
	flags.String("db", "", "path of the sqlite database (default ~/.scanward/scanward.db)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json, console")

	rootCmd.AddCommand(versionCmd)
}
