package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hvedges/tabsync/internal/importer"
	"github.com/hvedges/tabsync/internal/ui"
)

var clashCmd = &cobra.Command{
	Use:   "clash <key-a> <key-b>",
	Short: "Link one pairwise conflict",
	Long: `Link a conflict between two entities named by free-text keys. Keys
are resolved against institutions, judges, teams and speaker names, in that
order.

Conflicts between two teams or two institutions cannot be expressed by the
remote data model and are rejected. For bulk clashes, use
'tabsync import --clashes'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		imp := importer.New(client, logger)
		if err := imp.FetchClashBaseline(ctx); err != nil {
			return err
		}
		if err := imp.AddClash(ctx, args[0], args[1]); err != nil {
			return err
		}

		fmt.Printf("%s Clashed %q against %q\n", ui.RenderPass("✓"), args[0], args[1])
		return nil
	},
}
