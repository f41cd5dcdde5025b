// Package cmd builds the benchsheet command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"benchsheet/internal/config"
	"benchsheet/internal/dataparser"
	"benchsheet/internal/logging"
	"benchsheet/internal/tools"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const Version = "0.3.0"

// Exit codes besides 0.
const (
	ExitFailure = 1
	ExitNoInput = 2
)

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if errors.Is(err, dataparser.ErrNoInput) {
		return ExitNoInput
	}
	return ExitFailure
}

func loadEnvironment() {
	logger := logging.GetLogger()

	// Try to load .env file from current directory
	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		} else {
			logger.WithField("file", envFile).Debug("Loaded environment variables")
		}
	} else {
		// Try to load from the application directory
		if execPath, err := os.Executable(); err == nil {
			appDir := filepath.Dir(execPath)
			envFile = filepath.Join(appDir, ".env")
			if _, err := os.Stat(envFile); err == nil {
				if err := godotenv.Load(envFile); err != nil {
					logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
				} else {
					logger.WithField("file", envFile).Debug("Loaded environment variables")
				}
			}
		}
	}
}

// NewRootCommand assembles every subcommand.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "benchsheet",
		Short:         "Benchmark log to spreadsheet summarizer",
		Long:          "Parses fio, YCSB, filebench, sysstat, perf, cachestat and FUSE trace logs into keyed tables and writes them as XLSX workbooks.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	for _, t := range tools.All() {
		rootCmd.AddCommand(newToolCommand(t))
	}
	rootCmd.AddCommand(newMergeCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlotCommand())
	return rootCmd
}

// Execute runs the command line. A run that matched no input returns an
// error wrapping dataparser.ErrNoInput.
func Execute() error {
	loadEnvironment()
	return NewRootCommand().Execute()
}

func newValidateCommand() *cobra.Command {
	var configFile string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configFile)
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	validateCmd.MarkFlagRequired("config")
	return validateCmd
}

func validateConfig(configFile string) error {
	logger := logging.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	checksum := config.ChecksumOrEmpty(cfg)
	logger.WithField("config_file", configFile).
		WithField("checksum", checksum).
		WithField("cpu_groups", cfg.GroupLabelsSorted()).
		Info("Configuration is valid")
	return nil
}

// loadConfig reads configFile, or returns the defaults when it is empty.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
