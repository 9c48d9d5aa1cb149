package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sheetmind/internal/config"
	"sheetmind/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiKey     string
	workbook   string
	sheetName  string

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sheetmind",
	Short: "sheetmind - command routing and execution-plan assembly for spreadsheets",
	Long: `sheetmind turns a free-text spreadsheet command plus a description of the
visible data into a canonical execution plan: a chat answer, a native
formula, a single sheet action, or a multi-step AI column workflow.

Routing runs through a three-tier classifier (embedding cache, structured
AI call, keyword heuristics) with a learning loop that promotes confident
successes into the cache.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			logger.Warn("config load failed, using defaults", zap.Error(err))
			cfg = config.DefaultConfig()
		}
		if apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}
		if verbose {
			cfg.Logging.DebugMode = true
		}

		if err := logging.Initialize("."); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".sheetmind/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM API key (overrides config and env)")
	rootCmd.PersistentFlags().StringVar(&workbook, "workbook", "", "Path to an .xlsx workbook to build the data context from")
	rootCmd.PersistentFlags().StringVar(&sheetName, "sheet", "", "Sheet name inside the workbook (default: first sheet)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
