// Command cadmesh converts CAD and mesh files into simplified GLB previews
// and geometry metadata.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flywave/go-cadmesh/internal/config"
	"github.com/flywave/go-cadmesh/internal/logger"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogFile  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "cadmesh",
	Short:         "Normalize CAD and mesh files into web-ready GLB",
	Long:          "Load STEP, STL, OBJ, GLB and glTF files, simplify them to a bounded triangle budget, extract geometry metadata and export GLB.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.Logging.Level = flagLogLevel
		}
		if flagLogFile != "" {
			cfg.Logging.LogFile = flagLogFile
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Also log to this file, rotated")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
