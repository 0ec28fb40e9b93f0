package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hvedges/tabsync/internal/importer"
	"github.com/hvedges/tabsync/internal/ui"
)

var sensibleCmd = &cobra.Command{
	Use:   "sensible-conflicts",
	Short: "Clash every team and judge against its own institution",
	Long: `Tabbycat does not add self-institution conflicts for teams and
judges created through the edit-database interface. This command walks the
tournament and adds the missing ones. Existing conflicts are left alone, so
it is safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := importer.New(client, logger).MakeSensibleConflicts(ctx); err != nil {
			return err
		}
		fmt.Printf("%s Self-institution conflicts are in place\n", ui.RenderPass("✓"))
		return nil
	},
}
