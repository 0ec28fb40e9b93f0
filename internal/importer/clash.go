package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hvedges/tabsync/internal/api"
)

// ErrUnsupportedClash marks a clash between two teams or two institutions,
// which the remote data model cannot express. This is a user error with its
// own exit path, not a system fault.
var ErrUnsupportedClash = errors.New("unsupported clash pair")

// ErrUnresolvedKey marks a clash key that matched no institution, judge,
// team or speaker.
var ErrUnresolvedKey = errors.New("clash key matched nothing")

// clashKind is the closed set of things a free-text clash key can resolve
// to. Every consumption site switches exhaustively over the pair of kinds,
// so adding a fourth participant kind forces a review of each dispatch.
type clashKind int

const (
	clashInstitution clashKind = iota
	clashJudge
	clashTeam
)

func (k clashKind) String() string {
	switch k {
	case clashInstitution:
		return "institution"
	case clashJudge:
		return "judge"
	case clashTeam:
		return "team"
	}
	return "unknown"
}

// clashRef is a resolved clash participant. Exactly one of the payload
// fields is meaningful, selected by kind.
type clashRef struct {
	kind        clashKind
	institution api.Institution
	judge       api.Adjudicator
	team        api.Team
}

// resolveClashKey resolves a free-text key with fixed priority: institution
// by name or code, then judge by name, then team by long or short name,
// then team by one of its speakers' names. All comparisons are
// case-insensitive; the first match wins.
func (imp *Importer) resolveClashKey(key string) (clashRef, bool) {
	s := imp.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inst := range s.institutions {
		if strings.EqualFold(inst.Name, key) || strings.EqualFold(inst.Code, key) {
			return clashRef{kind: clashInstitution, institution: inst}, true
		}
	}
	for _, judge := range s.judges {
		if strings.EqualFold(judge.Name, key) {
			imp.logger.Debug("resolved clash key as judge",
				zap.String("key", key), zap.String("judge", judge.Name))
			return clashRef{kind: clashJudge, judge: judge}, true
		}
	}
	for _, team := range s.teams {
		if strings.EqualFold(team.LongName, key) || strings.EqualFold(team.ShortName, key) {
			imp.logger.Debug("resolved clash key as team",
				zap.String("key", key), zap.String("team", team.LongName))
			return clashRef{kind: clashTeam, team: team}, true
		}
	}
	for _, team := range s.teams {
		for _, sp := range team.Speakers {
			if strings.EqualFold(sp.Name, key) {
				imp.logger.Debug("resolved clash key as team via speaker name",
					zap.String("key", key), zap.String("team", team.LongName))
				return clashRef{kind: clashTeam, team: team}, true
			}
		}
	}
	return clashRef{}, false
}

// FetchClashBaseline loads the entity collections clash resolution needs.
// Used by the standalone clash command; a full import run already has them.
func (imp *Importer) FetchClashBaseline(ctx context.Context) error {
	return imp.fetchBaseline(ctx)
}

// AddClash resolves two free-text keys and appends the conflict to the
// appropriate entity's conflict list via read-modify-write. Re-adding an
// existing conflict is a logged no-op; the patched record's canonical
// server representation replaces the cached one.
func (imp *Importer) AddClash(ctx context.Context, keyA, keyB string) error {
	if strings.EqualFold(keyA, keyB) {
		// Logged but deliberately not fatal: the rest of the file may
		// still be valid.
		imp.logger.Error("attempted to clash an entity against itself",
			zap.String("a", keyA), zap.String("b", keyB))
	}

	a, ok := imp.resolveClashKey(keyA)
	if !ok {
		return fmt.Errorf("%w: no judge, team, speaker or institution matches %q", ErrUnresolvedKey, keyA)
	}
	b, ok := imp.resolveClashKey(keyB)
	if !ok {
		return fmt.Errorf("%w: no judge, team, speaker or institution matches %q", ErrUnresolvedKey, keyB)
	}

	switch {
	case a.kind == clashJudge && b.kind == clashInstitution:
		return imp.clashJudgeInstitution(ctx, a.judge, b.institution)
	case a.kind == clashInstitution && b.kind == clashJudge:
		return imp.clashJudgeInstitution(ctx, b.judge, a.institution)
	case a.kind == clashTeam && b.kind == clashInstitution:
		return imp.clashTeamInstitution(ctx, a.team, b.institution)
	case a.kind == clashInstitution && b.kind == clashTeam:
		return imp.clashTeamInstitution(ctx, b.team, a.institution)
	case a.kind == clashJudge && b.kind == clashJudge:
		return imp.clashJudgeJudge(ctx, a.judge, b.judge)
	case a.kind == clashJudge && b.kind == clashTeam:
		return imp.clashJudgeTeam(ctx, a.judge, b.team)
	case a.kind == clashTeam && b.kind == clashJudge:
		return imp.clashJudgeTeam(ctx, b.judge, a.team)
	case a.kind == clashTeam && b.kind == clashTeam:
		return fmt.Errorf("%w: a conflict between two teams (%q, %q) is not supported", ErrUnsupportedClash, keyA, keyB)
	case a.kind == clashInstitution && b.kind == clashInstitution:
		return fmt.Errorf("%w: a conflict between two institutions (%q, %q) is not supported", ErrUnsupportedClash, keyA, keyB)
	}
	return fmt.Errorf("unhandled clash pair %v/%v", a.kind, b.kind)
}

func (imp *Importer) clashJudgeInstitution(ctx context.Context, judge api.Adjudicator, inst api.Institution) error {
	if slices.Contains(judge.InstitutionConflicts, inst.URL) {
		imp.logger.Info("judge is already clashed against institution",
			zap.String("judge", judge.Name), zap.String("institution", inst.Name))
		return nil
	}
	patched, err := imp.client.PatchAdjudicatorConflicts(ctx, judge.URL,
		"institution_conflicts", append(judge.InstitutionConflicts, inst.URL))
	if err != nil {
		return fmt.Errorf("failed to clash judge %q against institution %q: %w", judge.Name, inst.Name, err)
	}
	imp.store.replaceJudge(patched)
	imp.logger.Info("clashed judge against institution",
		zap.String("judge", patched.Name), zap.String("institution", inst.Code))
	return nil
}

func (imp *Importer) clashTeamInstitution(ctx context.Context, team api.Team, inst api.Institution) error {
	if slices.Contains(team.InstitutionConflicts, inst.URL) {
		imp.logger.Info("team is already clashed against institution",
			zap.String("team", team.ShortName), zap.String("institution", inst.Name))
		return nil
	}
	patched, err := imp.client.PatchTeamConflicts(ctx, team.URL,
		append(team.InstitutionConflicts, inst.URL))
	if err != nil {
		return fmt.Errorf("failed to clash team %q against institution %q: %w", team.ShortName, inst.Name, err)
	}
	imp.store.replaceTeam(patched)
	imp.logger.Info("clashed team against institution",
		zap.String("team", patched.ShortName), zap.String("institution", inst.Code))
	return nil
}

func (imp *Importer) clashJudgeJudge(ctx context.Context, a, b api.Adjudicator) error {
	if slices.Contains(a.AdjudicatorConflicts, b.URL) {
		imp.logger.Info("judge is already clashed against judge",
			zap.String("a", a.Name), zap.String("b", b.Name))
		return nil
	}
	patched, err := imp.client.PatchAdjudicatorConflicts(ctx, a.URL,
		"adjudicator_conflicts", append(a.AdjudicatorConflicts, b.URL))
	if err != nil {
		return fmt.Errorf("failed to clash judge %q against judge %q: %w", a.Name, b.Name, err)
	}
	imp.store.replaceJudge(patched)
	imp.logger.Info("clashed judge against judge",
		zap.String("a", patched.Name), zap.String("b", b.Name))
	return nil
}

func (imp *Importer) clashJudgeTeam(ctx context.Context, judge api.Adjudicator, team api.Team) error {
	if slices.Contains(judge.TeamConflicts, team.URL) {
		imp.logger.Info("judge is already clashed against team",
			zap.String("judge", judge.Name), zap.String("team", team.ShortName))
		return nil
	}
	patched, err := imp.client.PatchAdjudicatorConflicts(ctx, judge.URL,
		"team_conflicts", append(judge.TeamConflicts, team.URL))
	if err != nil {
		return fmt.Errorf("failed to clash judge %q against team %q: %w", judge.Name, team.ShortName, err)
	}
	imp.store.replaceJudge(patched)
	imp.logger.Info("clashed judge against team",
		zap.String("judge", patched.Name), zap.String("team", team.ShortName))
	return nil
}
