package main

import (
	"fmt"
	"io"
	"os"

	"github.com/artpar/modcompose/bootstrap"
	"github.com/artpar/modcompose/config"
	"github.com/artpar/modcompose/core/formatter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modcompose",
	Short: "Compose application modules from declarative descriptors",
	Long: `modcompose resolves a set of feature modules into one application.

Each module is a descriptor with configuration, dependencies, route trees,
components and localized strings. Modules are discovered in the customer,
local and global source directories, merged, resolved in dependency order
and folded into a single route tree.

Quick start:
  modcompose compose      # Run a composition pass and summarize it
  modcompose routes       # Print the composed route tree
  modcompose serve        # Serve the inspection API

Maintenance:
  modcompose validate     # Check every descriptor
  modcompose history      # Inspect recorded passes`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "modcompose.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the config file, falling back to MODCOMPOSE_* variables.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// cliLogger writes console logs to w, warnings and above unless a level
// was requested.
func cliLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level := "warn"
	if logLevel != "" {
		level = cfg.Logging.Level
	}
	return bootstrap.NewLogger(level, "console", w)
}

func outputFormatter(name string) (formatter.Formatter, error) {
	return formatter.Lookup(name)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
