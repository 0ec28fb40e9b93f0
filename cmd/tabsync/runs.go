package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hvedges/tabsync/internal/config"
	"github.com/hvedges/tabsync/internal/journal"
	"github.com/hvedges/tabsync/internal/ui"
)

var flagRunsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recorded import runs",
	Long: `List recent import runs from the local journal, newest first. With
a run id, list every entity that run created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagJournalPath
		if path == "" {
			var err error
			path, err = journalDefaultPath()
			if err != nil {
				return err
			}
		}
		db, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return printCreations(cmd, db, runID)
		}
		return printRuns(cmd, db)
	},
}

func init() {
	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 20, "maximum number of runs to list")
	runsCmd.Flags().StringVar(&flagJournalPath, "journal", "", "run journal database path (default: alongside the config file)")
}

// journalDefaultPath places the journal next to the config file.
func journalDefaultPath() (string, error) {
	cfgPath, err := config.DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfgPath), "journal.db"), nil
}

func printRuns(cmd *cobra.Command, db *journal.DB) error {
	runs, err := db.ListRuns(cmd.Context(), flagRunsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println(ui.RenderDim("No recorded runs yet."))
		return nil
	}

	for _, run := range runs {
		marker := ui.RenderWarn("…")
		switch run.Status {
		case journal.StatusSucceeded:
			marker = ui.RenderPass("✓")
		case journal.StatusFailed:
			marker = ui.RenderFail("✗")
		}

		duration := ""
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%s #%d  %s  %s  %d created  %s\n",
			marker, run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Status, run.Creations,
			ui.RenderDim(duration))
		if run.Error != "" {
			fmt.Printf("    %s\n", ui.RenderFail(run.Error))
		}
	}
	return nil
}

func printCreations(cmd *cobra.Command, db *journal.DB, runID int64) error {
	creations, err := db.ListCreations(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(creations) == 0 {
		fmt.Println(ui.RenderDim("No creations recorded for this run."))
		return nil
	}
	for _, c := range creations {
		fmt.Printf("%-12s %-30s %s\n", c.Kind, c.Name, ui.RenderDim(c.URL))
	}
	return nil
}
