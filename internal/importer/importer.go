// Package importer implements the bulk synchronization engine: it resolves
// imported rows against the remote entity set, creates what is missing, and
// links pairwise conflicts, driving many concurrent requests through one
// rate-limited client.
//
// A run moves through fixed phases in dependency order — institutions before
// teams that reference them, categories materialized on first use — and
// aborts entirely on the first non-retryable failure after the current batch
// of in-flight tasks drains. There is no rollback: entities created by
// successful sibling tasks remain on the remote service, which is safe
// because every create path is guarded by an idempotent existence check and
// the run can simply be repeated after the input is fixed.
package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hvedges/tabsync/internal/api"
	"github.com/hvedges/tabsync/internal/rows"
)

// Options selects what a run imports. A nil row slice means that file was
// not provided; the corresponding phase is skipped.
type Options struct {
	Institutions []rows.InstitutionRow
	Rooms        []rows.RoomRow
	Judges       []rows.JudgeRow
	Teams        []rows.TeamRow
	Clashes      []rows.ClashRow

	// UseInstitutionPrefix applies the institution prefix to every team;
	// a team row's own flag takes precedence by ORing with this.
	UseInstitutionPrefix bool

	// Overwrite deletes all judges, then teams, then institutions before
	// importing. Destructive; invalidates previously sent private URLs.
	Overwrite bool

	// SetAvailability marks each created judge available or unavailable
	// for every round according to the row's availability tags.
	SetAvailability bool
}

// Importer owns one run's shared state: the entity caches, the category
// materializer and the rate-limited client.
type Importer struct {
	client    *api.Client
	logger    *zap.Logger
	store     *store
	cats      *categoryCache
	observers []Observer

	// teamCreateMu spans the read-then-decide-then-create sequence for
	// teams so two concurrent rows resolving to the same key cannot both
	// create.
	teamCreateMu sync.Mutex
}

// New creates an Importer. Observers are optional progress sinks (journal,
// dashboard); a nil logger falls back to a no-op logger.
func New(client *api.Client, logger *zap.Logger, observers ...Observer) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		client:    client,
		logger:    logger,
		store:     &store{},
		cats:      &categoryCache{client: client, logger: logger},
		observers: observers,
	}
}

// Run executes a full import. Any non-retryable failure aborts the run
// after its batch drains; already-created entities remain remote.
func (imp *Importer) Run(ctx context.Context, opts Options) error {
	imp.logger.Info("starting import",
		zap.Bool("overwrite", opts.Overwrite),
		zap.Bool("use_institution_prefix", opts.UseInstitutionPrefix),
		zap.Bool("set_availability", opts.SetAvailability))

	if err := imp.fetchBaseline(ctx); err != nil {
		return err
	}
	if opts.Overwrite {
		if err := imp.overwrite(ctx); err != nil {
			return err
		}
	}
	if err := imp.importInstitutions(ctx, opts.Institutions); err != nil {
		return err
	}
	if err := imp.importRooms(ctx, opts.Rooms); err != nil {
		return err
	}
	if err := imp.importJudges(ctx, opts); err != nil {
		return err
	}
	if err := imp.importTeams(ctx, opts); err != nil {
		return err
	}
	if err := imp.importClashes(ctx, opts.Clashes); err != nil {
		return err
	}

	imp.logger.Info("import complete")
	return nil
}

// fetchBaseline concurrently loads every entity collection the run resolves
// against.
func (imp *Importer) fetchBaseline(ctx context.Context) error {
	imp.notifyPhase("fetching baseline")

	var (
		institutions []api.Institution
		teams        []api.Team
		speakers     []api.Speaker
		judges       []api.Adjudicator
		rounds       []api.Round
		breakCats    []api.BreakCategory
		speakerCats  []api.SpeakerCategory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { institutions, err = imp.client.ListInstitutions(gctx); return err })
	g.Go(func() (err error) { teams, err = imp.client.ListTeams(gctx); return err })
	g.Go(func() (err error) { speakers, err = imp.client.ListSpeakers(gctx); return err })
	g.Go(func() (err error) { judges, err = imp.client.ListAdjudicators(gctx); return err })
	g.Go(func() (err error) { rounds, err = imp.client.ListRounds(gctx); return err })
	g.Go(func() (err error) { breakCats, err = imp.client.ListBreakCategories(gctx); return err })
	g.Go(func() (err error) { speakerCats, err = imp.client.ListSpeakerCategories(gctx); return err })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to fetch baseline: %w", err)
	}

	imp.store.seed(institutions, teams, speakers, judges, rounds)
	imp.cats.seed(breakCats, speakerCats)
	imp.logger.Info("baseline fetched",
		zap.Int("institutions", len(institutions)),
		zap.Int("teams", len(teams)),
		zap.Int("speakers", len(speakers)),
		zap.Int("judges", len(judges)),
		zap.Int("rounds", len(rounds)))
	return nil
}

// overwrite deletes every judge, then every team, then every institution —
// in that order because of referential dependency — and clears the caches
// so the import treats all rows as new. Deletions within one kind run
// concurrently; the kinds are strict phase boundaries.
func (imp *Importer) overwrite(ctx context.Context) error {
	imp.notifyPhase("overwriting")

	judges := imp.store.judgesSnapshot()
	g, gctx := errgroup.WithContext(ctx)
	for _, judge := range judges {
		g.Go(func() error {
			imp.logger.Info("deleting judge", zap.String("name", judge.Name))
			return imp.client.DeleteResource(gctx, judge.URL)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to delete judges: %w", err)
	}

	teams := imp.store.teamsSnapshot()
	g, gctx = errgroup.WithContext(ctx)
	for _, team := range teams {
		g.Go(func() error {
			imp.logger.Info("deleting team", zap.String("name", team.ShortName))
			return imp.client.DeleteResource(gctx, team.URL)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to delete teams: %w", err)
	}

	institutions := imp.store.institutionsSnapshot()
	g, gctx = errgroup.WithContext(ctx)
	for _, inst := range institutions {
		g.Go(func() error {
			imp.logger.Info("deleting institution", zap.String("name", inst.Name))
			return imp.client.DeleteResource(gctx, inst.URL)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to delete institutions: %w", err)
	}

	imp.store.clear()
	return nil
}

// importInstitutions processes institution rows strictly sequentially: the
// remote service has a known correctness issue with concurrent institution
// creation.
func (imp *Importer) importInstitutions(ctx context.Context, institutionRows []rows.InstitutionRow) error {
	if len(institutionRows) == 0 {
		imp.logger.Info("no institutions were provided to import")
		return nil
	}
	imp.notifyPhase("importing institutions")

	for _, row := range institutionRows {
		if imp.store.institutionExists(row.FullName, row.ShortCode) {
			imp.logger.Info("institution already exists, not inserting",
				zap.String("name", row.FullName))
			continue
		}

		payload := api.InstitutionPayload{Name: row.FullName, Code: row.ShortCode}
		if row.Region != "" {
			payload.Region = &row.Region
		}
		inst, err := imp.client.CreateInstitution(ctx, payload)
		if err != nil {
			return fmt.Errorf("failed to create institution %q: %w", row.FullName, err)
		}
		imp.logger.Info("created institution",
			zap.String("name", inst.Name), zap.Int("id", inst.ID))
		imp.store.addInstitution(inst)
		imp.notifyCreated("institution", inst.Name, inst.URL)
	}
	return nil
}

// importRooms creates every venue, accumulating venue-category name
// associations, then creates one venue category per distinct name
// referencing the accumulated venues.
func (imp *Importer) importRooms(ctx context.Context, roomRows []rows.RoomRow) error {
	if len(roomRows) == 0 {
		imp.logger.Info("no rooms were provided to import")
		return nil
	}
	imp.notifyPhase("importing rooms")

	categoryVenues := make(map[string][]string)
	for _, row := range roomRows {
		venue, err := imp.client.CreateVenue(ctx, api.VenuePayload{
			Name:       row.Name,
			Priority:   row.Priority,
			Categories: []string{},
		})
		if err != nil {
			return fmt.Errorf("failed to create venue %q: %w", row.Name, err)
		}
		imp.logger.Info("created venue",
			zap.String("name", venue.Name), zap.Int("id", venue.ID))
		imp.notifyCreated("venue", venue.Name, venue.URL)

		for _, cat := range row.Categories {
			categoryVenues[cat] = append(categoryVenues[cat], venue.URL)
		}
	}

	for name, venues := range categoryVenues {
		err := imp.client.CreateVenueCategory(ctx, api.VenueCategoryPayload{
			Name:               name,
			Venues:             venues,
			DisplayInVenueName: "P",
		})
		if err != nil {
			return fmt.Errorf("failed to create venue category %q: %w", name, err)
		}
		imp.logger.Info("created venue category", zap.String("name", name))
	}
	return nil
}

// importJudges dispatches one task per judge row. Each task resolves the
// judge's institution and institution clashes against the (now stable)
// institution set, skips the row when the judge already exists, and
// otherwise creates it — optionally marking per-round availability.
func (imp *Importer) importJudges(ctx context.Context, opts Options) error {
	if len(opts.Judges) == 0 {
		imp.logger.Info("no judges were provided to import")
		return nil
	}
	imp.notifyPhase("importing judges")

	institutions := imp.store.institutionsSnapshot()
	rounds := imp.store.roundsSnapshot()

	g, gctx := errgroup.WithContext(ctx)
	for _, row := range opts.Judges {
		g.Go(func() error {
			return imp.importJudge(gctx, row, institutions, rounds, opts.SetAvailability)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to import judges: %w", err)
	}
	return nil
}

func (imp *Importer) importJudge(ctx context.Context, row rows.JudgeRow, institutions []api.Institution, rounds []api.Round, setAvailability bool) error {
	if imp.store.judgeExists(row.Name) {
		imp.logger.Info("judge already exists, not creating a record",
			zap.String("name", row.Name))
		return nil
	}

	inst := institutionByKeyExact(institutions, row.Institution)
	if row.Institution != "" && inst == nil {
		return fmt.Errorf("judge %q references institution %q, but no institution with that name or code exists", row.Name, row.Institution)
	}

	payload := api.AdjudicatorPayload{
		Name:                 row.Name,
		InstitutionConflicts: institutionConflictURLs(institutions, row.InstitutionClashes),
		TeamConflicts:        []string{},
		AdjudicatorConflicts: []string{},
		Email:                row.Email,
		BaseScore:            row.BaseScore,
		AdjCore:              row.IsChairEligible,
		Independent:          row.IsIndependent,
	}
	if inst != nil {
		payload.Institution = &inst.URL
	}

	judge, err := imp.client.CreateAdjudicator(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to create judge %q: %w", row.Name, err)
	}
	imp.logger.Info("created judge",
		zap.String("name", judge.Name), zap.Int("id", judge.ID))
	imp.store.addJudge(judge)
	imp.notifyCreated("judge", judge.Name, judge.URL)

	if !setAvailability {
		return nil
	}
	return imp.markAvailability(ctx, row, judge, rounds)
}

// markAvailability marks the judge available (PUT) for every round whose
// abbreviation or name appears among the row's availability tags,
// case-insensitively, and unavailable (POST) for every other round.
func (imp *Importer) markAvailability(ctx context.Context, row rows.JudgeRow, judge api.Adjudicator, rounds []api.Round) error {
	tags := make(map[string]struct{}, len(row.Availability))
	for _, tag := range row.Availability {
		tags[strings.ToLower(tag)] = struct{}{}
	}

	for _, round := range rounds {
		_, byAbbrev := tags[strings.ToLower(round.Abbreviation)]
		_, byName := tags[strings.ToLower(round.Name)]
		available := byAbbrev || byName

		if err := imp.client.SetAvailability(ctx, round.Seq, judge.URL, available); err != nil {
			return fmt.Errorf("failed to mark judge %q availability for round %q: %w", row.Name, round.Name, err)
		}
		imp.logger.Info("marked judge availability",
			zap.String("judge", row.Name),
			zap.String("round", round.Name),
			zap.Bool("available", available))
	}
	return nil
}

// importTeams dispatches one task per team row; each task resolves or
// creates the team and then processes that team's speakers sequentially.
func (imp *Importer) importTeams(ctx context.Context, opts Options) error {
	if len(opts.Teams) == 0 {
		imp.logger.Info("no teams were provided to import")
		return nil
	}
	imp.notifyPhase("importing teams and speakers")

	g, gctx := errgroup.WithContext(ctx)
	for _, row := range opts.Teams {
		g.Go(func() error {
			return imp.importTeam(gctx, row, opts.UseInstitutionPrefix)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to import teams: %w", err)
	}
	return nil
}

func (imp *Importer) importTeam(ctx context.Context, row rows.TeamRow, globalPrefix bool) error {
	inst := imp.store.institutionByKeyFold(row.Institution)
	if row.Institution != "" && inst == nil {
		return fmt.Errorf("team %q belongs to institution %q, but no corresponding institution exists", row.FullName, row.Institution)
	}

	longName, shortName := effectiveTeamNames(row, inst, globalPrefix)
	codeName := strings.TrimSpace(row.CodeName)

	// The lock spans read-then-decide-then-create so two rows resolving to
	// the same key cannot both create a team.
	imp.teamCreateMu.Lock()
	var teamURL string
	if existing, ok := imp.store.findTeam(longName, shortName, codeName); ok {
		imp.teamCreateMu.Unlock()
		imp.logger.Info("team already exists, not creating a record",
			zap.String("name", row.FullName))
		teamURL = existing.URL
	} else {
		team, err := imp.createTeam(ctx, row, inst, globalPrefix)
		imp.teamCreateMu.Unlock()
		if err != nil {
			return err
		}
		teamURL = team.URL
	}

	return imp.importSpeakers(ctx, row, teamURL)
}

func (imp *Importer) createTeam(ctx context.Context, row rows.TeamRow, inst *api.Institution, globalPrefix bool) (api.Team, error) {
	breakURLs, err := imp.cats.breakCategoryURLs(ctx, row.Categories)
	if err != nil {
		return api.Team{}, fmt.Errorf("team %q: %w", row.FullName, err)
	}

	payload := api.TeamPayload{
		Reference:            row.FullName,
		ShortReference:       row.ShortName,
		CodeName:             row.CodeName,
		Seed:                 row.Seed,
		Emoji:                row.Emoji,
		UseInstitutionPrefix: globalPrefix || row.UseInstitutionPrefix,
		BreakCategories:      breakURLs,
		// Speakers are attached afterwards, one create each.
	}
	if inst != nil {
		payload.Institution = &inst.URL
	}

	team, err := imp.client.CreateTeam(ctx, payload)
	if err != nil {
		return api.Team{}, fmt.Errorf("failed to create team %q: %w", row.FullName, err)
	}
	imp.logger.Info("created team",
		zap.String("name", team.LongName), zap.Int("id", team.ID))
	imp.store.addTeam(team)
	imp.notifyCreated("team", team.LongName, team.URL)
	return team, nil
}

// importSpeakers processes one team's speakers sequentially: resolve or
// create each, then re-fetch the team because its speaker list is derived
// server-side and the remote service is the source of truth for it.
func (imp *Importer) importSpeakers(ctx context.Context, row rows.TeamRow, teamURL string) error {
	for _, sp := range row.Speakers {
		if imp.store.speakerExists(sp.Name, sp.URLKey) {
			imp.logger.Info("speaker already exists, not creating a record",
				zap.String("name", sp.Name))
			continue
		}

		catURLs, err := imp.cats.speakerCategoryURLs(ctx, sp.Categories)
		if err != nil {
			return fmt.Errorf("speaker %q: %w", sp.Name, err)
		}

		speaker, err := imp.client.CreateSpeaker(ctx, api.SpeakerPayload{
			Name:       sp.Name,
			Team:       teamURL,
			Categories: catURLs,
			Email:      sp.Email,
			Phone:      sp.Phone,
			Anonymous:  sp.Anonymous,
			CodeName:   sp.CodeName,
			URLKey:     sp.URLKey,
			Gender:     sp.Gender,
			Pronoun:    sp.Pronoun,
		})
		if err != nil {
			return fmt.Errorf("failed to create speaker %q: %w", sp.Name, err)
		}
		imp.logger.Info("created speaker",
			zap.String("name", speaker.Name), zap.Int("id", speaker.ID))
		imp.store.addSpeaker(speaker)
		imp.notifyCreated("speaker", speaker.Name, speaker.URL)

		team, err := imp.client.GetTeam(ctx, teamURL)
		if err != nil {
			return fmt.Errorf("failed to refresh team %q after attaching speaker: %w", row.FullName, err)
		}
		imp.store.replaceTeam(team)
	}
	return nil
}

// importClashes links pairwise conflicts sequentially, operating on the
// fully populated entity set.
func (imp *Importer) importClashes(ctx context.Context, clashRows []rows.ClashRow) error {
	if len(clashRows) == 0 {
		return nil
	}
	imp.notifyPhase("importing clashes")

	for _, row := range clashRows {
		if err := imp.AddClash(ctx, row.Object1, row.Object2); err != nil {
			return err
		}
	}
	return nil
}
