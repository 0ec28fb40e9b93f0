package importer

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// MakeSensibleConflicts creates the self-institution conflicts the remote
// service often fails to add: a team or judge whose institution was set
// through the edit-database interface ends up without a conflict against
// its own institution. Idempotent; existing conflicts are left alone.
func (imp *Importer) MakeSensibleConflicts(ctx context.Context) error {
	teams, err := imp.client.ListTeams(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch teams: %w", err)
	}

	for _, team := range teams {
		if team.Institution == nil || slices.Contains(team.InstitutionConflicts, *team.Institution) {
			continue
		}
		patched, err := imp.client.PatchTeamConflicts(ctx, team.URL,
			append(team.InstitutionConflicts, *team.Institution))
		if err != nil {
			return fmt.Errorf("failed to clash team %q against its own institution: %w", team.ShortName, err)
		}
		imp.logger.Info("clashed team against its own institution",
			zap.String("team", patched.ShortName))
	}

	judges, err := imp.client.ListAdjudicators(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch judges: %w", err)
	}

	for _, judge := range judges {
		if judge.Institution == nil {
			continue
		}
		if slices.Contains(judge.InstitutionConflicts, *judge.Institution) {
			imp.logger.Info("judge is already clashed against their own institution",
				zap.String("judge", judge.Name))
			continue
		}
		patched, err := imp.client.PatchAdjudicatorConflicts(ctx, judge.URL,
			"institution_conflicts", append(judge.InstitutionConflicts, *judge.Institution))
		if err != nil {
			return fmt.Errorf("failed to clash judge %q against their own institution: %w", judge.Name, err)
		}
		imp.logger.Info("clashed judge against their own institution",
			zap.String("judge", patched.Name))
	}
	return nil
}
