package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hvedges/tabsync/internal/config"
	"github.com/hvedges/tabsync/internal/ui"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Configure the Tabbycat connection interactively",
	Long: `Prompt for the Tabbycat URL, tournament slug and API key, and save
them to the config file. Existing values are offered as defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfigPath)
		if err != nil {
			return err
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Tabbycat URL").
					Description("Base URL of the instance, e.g. https://tabs.example.org").
					Value(&cfg.TabbycatURL).
					Validate(func(s string) error {
						if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
							return fmt.Errorf("must start with http:// or https://")
						}
						return nil
					}),
				huh.NewInput().
					Title("Tournament slug").
					Description("The tournament identifier from the URL").
					Value(&cfg.TournamentSlug).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("cannot be empty")
						}
						return nil
					}),
				huh.NewInput().
					Title("API key").
					Description("Found on the instance's /api-token page").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.APIKey).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("cannot be empty")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("configuration aborted: %w", err)
		}

		if err := config.Save(flagConfigPath, cfg); err != nil {
			return err
		}
		fmt.Printf("%s Saved configuration to %s\n", ui.RenderPass("✓"), flagConfigPath)
		return nil
	},
}
