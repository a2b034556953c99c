// =============================================================================
// X12 Parser - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (x12)
//   ├── parseCmd    (x12 parse)
//   ├── segmentsCmd (x12 segments)
//   ├── validateCmd (x12 validate)
//   ├── catalogCmd  (x12 catalog export)
//   └── versionCmd  (x12 version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the optional .env file (--env-file)
//   2. Loads config.yaml with X12_* environment overrides (--config)
//   3. Builds the slog logger and stores it in the command context
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x12-parser/internal/config"
	"github.com/ginjaninja78/x12-parser/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile holds the path to an optional .env file.
var envFile string

// verbose enables debug logging when set to true.
var verbose bool

// appConfig is the configuration loaded by the root command.
var appConfig *config.Config

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "x12",
	Short: "X12 Parser - Parse ASC X12 interchanges into loop trees",
	Long: `X12 Parser reads ASC X12 EDI interchanges, detects their delimiters from
the ISA header, and assembles every transaction set into a tree of loops and
typed segments.

Key Features:
  - Delimiter detection from the fixed-width ISA header
  - Segment catalogs in YAML or XLSX templates
  - Built-in 270, 271 and 837 professional transaction sets
  - JSON or XML output with optional archival
  - Concurrent processing of many files

Example Usage:
  x12 parse                      # Parse every interchange in the input directory
  x12 parse claims.x12           # Parse one file
  x12 segments claims.x12 --dump # Show typed segments
  x12 validate                   # Validate configuration and catalog`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}

		path := cfgFile
		if !cmd.Flags().Changed("config") {
			// The default config.yaml is optional.
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				path = ""
			}
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		appConfig = cfg

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger := logging.New(level, cfg.LogFormat, cmd.ErrOrStderr())
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		logger.Debug("Loaded configuration.", slog.String("config", path))
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to a .env file with X12_* overrides",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
