package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hvedges/tabsync/internal/dashboard"
	"github.com/hvedges/tabsync/internal/importer"
	"github.com/hvedges/tabsync/internal/journal"
	"github.com/hvedges/tabsync/internal/rows"
	"github.com/hvedges/tabsync/internal/ui"
)

var (
	flagInstitutions string
	flagRooms        string
	flagJudges       string
	flagTeams        string
	flagClashes      string

	flagUseInstitutionPrefix bool
	flagOverwrite            bool
	flagSetAvailability      bool

	flagJournalPath   string
	flagNoJournal     bool
	flagDashboardAddr string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import rosters from CSV files into the tournament",
	Long: `Import institutions, rooms, judges, teams with their speakers, and
pairwise conflicts. Every file is optional; phases without input are skipped.

Input problems (missing files, malformed cells) are reported before any
network request is made. The import itself is idempotent and can be repeated
after a failure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadImportOptions()
		if err != nil {
			return err
		}

		client, err := loadClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		observers, finish, err := buildObservers(ctx)
		if err != nil {
			return err
		}

		start := time.Now()
		runErr := importer.New(client, logger, observers...).Run(ctx, opts)
		finish(runErr)

		if runErr != nil {
			return runErr
		}
		fmt.Printf("%s Import complete in %v\n",
			ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&flagInstitutions, "institutions", "", "institutions CSV file")
	importCmd.Flags().StringVar(&flagRooms, "rooms", "", "rooms CSV file")
	importCmd.Flags().StringVar(&flagJudges, "judges", "", "judges CSV file")
	importCmd.Flags().StringVar(&flagTeams, "teams", "", "teams CSV file")
	importCmd.Flags().StringVar(&flagClashes, "clashes", "", "clashes CSV file (two columns, no header)")
	importCmd.Flags().BoolVar(&flagUseInstitutionPrefix, "use-institution-prefix", false, "prefix every team name with its institution")
	importCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "delete all judges, teams and institutions before importing (destructive)")
	importCmd.Flags().BoolVar(&flagSetAvailability, "set-availability", false, "mark judge availability per round from the availability column")
	importCmd.Flags().StringVar(&flagJournalPath, "journal", "", "run journal database path (default: alongside the config file)")
	importCmd.Flags().BoolVar(&flagNoJournal, "no-journal", false, "do not record this run in the journal")
	importCmd.Flags().StringVar(&flagDashboardAddr, "dashboard-addr", "", "serve a live progress dashboard on this address (e.g. :8080)")
}

// loadImportOptions reads every provided CSV file. All input errors surface
// here, before any network traffic.
func loadImportOptions() (importer.Options, error) {
	opts := importer.Options{
		UseInstitutionPrefix: flagUseInstitutionPrefix,
		Overwrite:            flagOverwrite,
		SetAvailability:      flagSetAvailability,
	}

	var err error
	if flagInstitutions != "" {
		if opts.Institutions, err = rows.ReadInstitutions(flagInstitutions); err != nil {
			return importer.Options{}, err
		}
	}
	if flagRooms != "" {
		if opts.Rooms, err = rows.ReadRooms(flagRooms); err != nil {
			return importer.Options{}, err
		}
	}
	if flagJudges != "" {
		if opts.Judges, err = rows.ReadJudges(flagJudges); err != nil {
			return importer.Options{}, err
		}
	}
	if flagTeams != "" {
		if opts.Teams, err = rows.ReadTeams(flagTeams); err != nil {
			return importer.Options{}, err
		}
	}
	if flagClashes != "" {
		if opts.Clashes, err = rows.ReadClashes(flagClashes); err != nil {
			return importer.Options{}, err
		}
	}
	return opts, nil
}

// buildObservers assembles the optional journal recorder and dashboard. The
// returned finish function records the run outcome and releases resources.
func buildObservers(ctx context.Context) ([]importer.Observer, func(error), error) {
	var (
		observers []importer.Observer
		cleanups  []func(error)
	)

	if !flagNoJournal {
		path := flagJournalPath
		if path == "" {
			var err error
			path, err = journalDefaultPath()
			if err != nil {
				return nil, nil, err
			}
		}
		db, err := journal.Open(path)
		if err != nil {
			return nil, nil, err
		}
		rec, err := journal.NewRecorder(ctx, db, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		observers = append(observers, rec)
		cleanups = append(cleanups, func(runErr error) {
			finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rec.Finish(finishCtx, runErr); err != nil {
				logger.Warn("failed to finish journal run", zap.Error(err))
			}
			_ = db.Close()
		})
	}

	if flagDashboardAddr != "" {
		srv := dashboard.NewServer(flagDashboardAddr, logger)
		if err := srv.Start(); err != nil {
			return nil, nil, err
		}
		observers = append(observers, srv)
		cleanups = append(cleanups, func(runErr error) {
			srv.RunFinished(runErr)
			// Give connected clients a moment to receive the final message.
			time.Sleep(200 * time.Millisecond)
			if err := srv.Stop(); err != nil {
				logger.Warn("failed to stop dashboard", zap.Error(err))
			}
		})
	}

	finish := func(runErr error) {
		for _, cleanup := range cleanups {
			cleanup(runErr)
		}
	}
	return observers, finish, nil
}
