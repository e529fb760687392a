package main

import (
	"fmt"

	"github.com/artpar/modcompose/bootstrap"
	"github.com/spf13/cobra"
)

var watchModules bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inspection API",
	Long: `Compose the configured modules and serve the result over HTTP.

The server will:
  - Load configuration from modcompose.yaml (or --config)
  - Or load configuration from MODCOMPOSE_* environment variables
  - Run a composition pass and publish it
  - Reload the config file on change or SIGHUP and recompose
  - With --watch, recompose whenever a descriptor changes

Environment variables:
  MODCOMPOSE_MODULES          - Comma separated modules to compose
  MODCOMPOSE_ROOT_MODULE      - Module whose routes form the tree
  MODCOMPOSE_SERVER_PORT      - Server port (default: 8090)
  MODCOMPOSE_DATABASE_DSN     - Snapshot database (default: modcompose.db)
  MODCOMPOSE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  modcompose serve
  modcompose serve --watch
  MODCOMPOSE_MODULES=shell,admin modcompose serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&watchModules, "watch", false, "recompose when module descriptors change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      watchModules,
	}
	// Environment-only setups have no file to reload.
	if !fileExists(cfgFile) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using configuration from environment variables")
		opts.Config = cfg
	} else if logLevel != "" {
		opts.Config = cfg
	}

	app, err := bootstrap.New(opts)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
