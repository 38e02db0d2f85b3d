// Command docxfill fills docx templates with JSON or spreadsheet data.
package main

import (
	"fmt"
	"os"

	"github.com/briiC/docxfill"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *docxfill.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docxfill",
	Short: "Fill docx content controls with data",
	Long: `docxfill replaces tagged content controls in docx templates with values
from JSON or xlsx data files, one output document per record.

Generated text is coloured and every body substitution gets a comment,
run "docxfill clean" to produce the final document.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = docxfill.LoadConfig(configPath); err != nil {
			return err
		}
		if logger, err = buildLogger(cfg.Log); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func buildLogger(lc docxfill.LogConfig) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if lc.Development {
		config = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "docxfill.yaml", "Config file (YAML), defaults when missing")

	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(convertCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
