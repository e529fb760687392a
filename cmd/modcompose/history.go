package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/artpar/modcompose/adapters/sqlite"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded composition passes",
	Long: `Inspect the composition passes saved to the snapshot database by
"modcompose compose --record" or by a server with snapshots enabled.

Examples:
  modcompose history list
  modcompose history list --limit 5
  modcompose history show 12
  modcompose history show 6f1c2a4e-...`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded passes, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id|pass-id>",
	Short: "Show one recorded pass",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of passes to list (0 = all)")
}

func openHistory() (*sqlite.DB, *sqlite.SnapshotStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.Database.DSN); err != nil {
		return nil, nil, fmt.Errorf("no snapshot database at %s", cfg.Database.DSN)
	}
	db, err := openSnapshots(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, sqlite.NewSnapshotStore(db), nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	db, store, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	snaps, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded passes")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPASS\tCREATED\tDURATION\tMODULES\tSTATUS")
	for _, s := range snaps {
		status := "ok"
		if s.Failed() {
			status = "failed"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.PassID, s.CreatedAt.Local().Format(time.DateTime), s.Duration, len(s.Modules), status)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, store, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("pass not found: %s", args[0])
		}
		return fmt.Errorf("get snapshot: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pass %s (#%d)\n", s.PassID, s.ID)
	fmt.Fprintf(out, "  created:  %s\n", s.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  duration: %s\n", s.Duration)
	if s.RootModule != "" {
		fmt.Fprintf(out, "  root:     %s\n", s.RootModule)
	}
	if s.Failed() {
		fmt.Fprintf(out, "  error:    %s\n", s.Error)
		return nil
	}
	fmt.Fprintf(out, "  modules:  %v\n", s.Modules)
	fmt.Fprintf(out, "  backend:  %v\n", s.BackendModules)
	fmt.Fprintf(out, "  locales:  %v\n", s.Locales)

	if len(s.Routes) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, s.Routes, "  ", "  "); err != nil {
			return fmt.Errorf("decode routes: %w", err)
		}
		fmt.Fprintf(out, "  routes:\n  %s\n", buf.String())
	}
	return nil
}
