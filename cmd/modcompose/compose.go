package main

import (
	"context"
	"fmt"
	"io"

	"github.com/artpar/modcompose/adapters/sqlite"
	"github.com/artpar/modcompose/bootstrap"
	"github.com/artpar/modcompose/config"
	"github.com/artpar/modcompose/core/compose"
	"github.com/artpar/modcompose/core/formatter"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	recordPass   bool
	routesModule string
	noHeader     bool
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Run a composition pass and summarize the loaded modules",
	Long: `Run one composition pass over the configured modules and print the
loaded modules in load order.

Examples:
  modcompose compose
  modcompose compose --output json
  modcompose compose --record      # save the pass to the snapshot database`,
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the modules of a composition pass",
	RunE:  runCompose,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the composed route tree",
	Long: `Print the route tree produced by a composition pass.

Examples:
  modcompose routes
  modcompose routes --output tree
  modcompose routes --module users   # routes of one loaded module`,
	RunE: runRoutes,
}

func init() {
	// Assigned here: runCompose refers to composeCmd, so setting it in the
	// composite literal would be an initialization cycle.
	composeCmd.RunE = runCompose

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(routesCmd)

	for _, cmd := range []*cobra.Command{composeCmd, modulesCmd, routesCmd} {
		cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: json, yaml, table, tree")
		cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit table headers")
	}
	composeCmd.Flags().BoolVar(&recordPass, "record", false, "save the pass to the snapshot database")
	routesCmd.Flags().StringVarP(&routesModule, "module", "m", "", "print the routes of one module")
}

func runCompose(cmd *cobra.Command, args []string) error {
	f, err := outputFormatter(outputFormat)
	if err != nil {
		return err
	}
	res, err := composeOnce(cmd.Context(), cmd.ErrOrStderr(), recordPass && cmd == composeCmd)
	if err != nil {
		return reportError(cmd, f, err)
	}
	if cmd == composeCmd {
		stats := res.Stats()
		fmt.Fprintf(cmd.ErrOrStderr(), "pass %s: %d modules, %d routes, %d locales in %s\n",
			stats.PassID, stats.Modules, stats.Routes, stats.Locales, stats.Duration)
	}
	return f.FormatModules(cmd.OutOrStdout(), formatter.Summarize(res.App), formatter.FormatOptions{NoHeader: noHeader})
}

func runRoutes(cmd *cobra.Command, args []string) error {
	f, err := outputFormatter(outputFormat)
	if err != nil {
		return err
	}
	res, err := composeOnce(cmd.Context(), cmd.ErrOrStderr(), false)
	if err != nil {
		return reportError(cmd, f, err)
	}

	nodes := res.Routes
	if routesModule != "" {
		mod, ok := res.App.Modules[routesModule]
		if !ok {
			return fmt.Errorf("module %q is not loaded", routesModule)
		}
		nodes = mod.Routers.Nodes
	}
	return f.FormatRoutes(cmd.OutOrStdout(), nodes, formatter.FormatOptions{NoHeader: noHeader})
}

// composeOnce runs a pass. With record set the pass is saved to the
// configured snapshot database.
func composeOnce(ctx context.Context, logOut io.Writer, record bool) (*compose.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts := bootstrap.ComposerOptions{Logger: cliLogger(cfg, logOut)}

	if !record {
		return bootstrap.NewComposer(cfg, opts).DryRun(ctx)
	}

	db, err := openSnapshots(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	opts.Snapshots = sqlite.NewSnapshotStore(db)
	return bootstrap.NewComposer(cfg, opts).Compose(ctx)
}

func openSnapshots(cfg *config.Config) (*sqlite.DB, error) {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// reportError lets machine-readable formatters render the error on stdout.
func reportError(cmd *cobra.Command, f formatter.Formatter, err error) error {
	if outputFormat == "json" || outputFormat == "yaml" {
		if ferr := f.FormatError(cmd.OutOrStdout(), err); ferr != nil {
			return ferr
		}
	}
	return err
}
