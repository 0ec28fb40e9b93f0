package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hvedges/tabsync/internal/importer"
	"github.com/hvedges/tabsync/internal/ui"
	"github.com/hvedges/tabsync/internal/watch"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the import whenever an input file changes",
	Long: `Run an import, then keep watching the input files and re-import on
every change. Useful during registration when the spreadsheets are still
moving. Each re-import is a fresh idempotent run, so repeated triggers are
safe.

Takes the same file flags as 'tabsync import'. Press Ctrl-C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		for _, p := range []string{flagInstitutions, flagRooms, flagJudges, flagTeams, flagClashes} {
			if p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("nothing to watch: provide at least one of --institutions, --rooms, --judges, --teams, --clashes")
		}

		client, err := loadClient()
		if err != nil {
			return err
		}

		runImport := func(ctx context.Context) error {
			// Rows are re-read on every trigger so edits are picked up.
			opts, err := loadImportOptions()
			if err != nil {
				return err
			}
			return importer.New(client, logger).Run(ctx, opts)
		}

		cfg := watch.DefaultConfig()
		cfg.DebounceInterval = flagDebounce
		cfg.Logger = logger

		daemon, err := watch.New(paths, runImport, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Watching %d files, Ctrl-C to stop\n", ui.RenderAccent("👁"), len(paths))
		return daemon.Start(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagInstitutions, "institutions", "", "institutions CSV file")
	watchCmd.Flags().StringVar(&flagRooms, "rooms", "", "rooms CSV file")
	watchCmd.Flags().StringVar(&flagJudges, "judges", "", "judges CSV file")
	watchCmd.Flags().StringVar(&flagTeams, "teams", "", "teams CSV file")
	watchCmd.Flags().StringVar(&flagClashes, "clashes", "", "clashes CSV file (two columns, no header)")
	watchCmd.Flags().BoolVar(&flagUseInstitutionPrefix, "use-institution-prefix", false, "prefix every team name with its institution")
	watchCmd.Flags().BoolVar(&flagSetAvailability, "set-availability", false, "mark judge availability per round from the availability column")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 2*time.Second, "quiet period before a change triggers a re-import")
}
