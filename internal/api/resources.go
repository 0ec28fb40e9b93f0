package api

import (
	"context"
	"net/http"
	"strconv"
)

// ListInstitutions fetches every institution known to the instance.
// Institutions live outside the tournament scope.
func (c *Client) ListInstitutions(ctx context.Context) ([]Institution, error) {
	var out []Institution
	err := c.getJSON(ctx, c.apiAddr()+"/institutions", &out)
	return out, err
}

// ListTeams fetches the tournament's teams.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var out []Team
	err := c.getJSON(ctx, c.tournamentURL("teams"), &out)
	return out, err
}

// ListSpeakers fetches the tournament's speakers.
func (c *Client) ListSpeakers(ctx context.Context) ([]Speaker, error) {
	var out []Speaker
	err := c.getJSON(ctx, c.tournamentURL("speakers"), &out)
	return out, err
}

// ListAdjudicators fetches the tournament's judges.
func (c *Client) ListAdjudicators(ctx context.Context) ([]Adjudicator, error) {
	var out []Adjudicator
	err := c.getJSON(ctx, c.tournamentURL("adjudicators"), &out)
	return out, err
}

// ListRounds fetches the tournament's rounds.
func (c *Client) ListRounds(ctx context.Context) ([]Round, error) {
	var out []Round
	err := c.getJSON(ctx, c.tournamentURL("rounds"), &out)
	return out, err
}

// ListBreakCategories fetches the tournament's break categories.
func (c *Client) ListBreakCategories(ctx context.Context) ([]BreakCategory, error) {
	var out []BreakCategory
	err := c.getJSON(ctx, c.tournamentURL("break-categories"), &out)
	return out, err
}

// ListSpeakerCategories fetches the tournament's speaker categories.
func (c *Client) ListSpeakerCategories(ctx context.Context) ([]SpeakerCategory, error) {
	var out []SpeakerCategory
	err := c.getJSON(ctx, c.tournamentURL("speaker-categories"), &out)
	return out, err
}

// GetTeam re-fetches a single team by its canonical URL. Used after speaker
// creation because team.speakers is derived server-side.
func (c *Client) GetTeam(ctx context.Context, url string) (Team, error) {
	var out Team
	err := c.getJSON(ctx, url, &out)
	return out, err
}

// InstitutionPayload is the create body for an institution.
type InstitutionPayload struct {
	Name   string  `json:"name"`
	Code   string  `json:"code"`
	Region *string `json:"region"`
}

// CreateInstitution POSTs a new institution and returns the created record.
func (c *Client) CreateInstitution(ctx context.Context, p InstitutionPayload) (Institution, error) {
	var out Institution
	err := c.sendJSON(ctx, http.MethodPost, c.apiAddr()+"/institutions", p, &out)
	return out, err
}

// TeamPayload is the create body for a team. Speakers are intentionally
// absent: they are attached by separate speaker creations afterwards.
type TeamPayload struct {
	Reference            string   `json:"reference"`
	ShortReference       string   `json:"short_reference,omitempty"`
	CodeName             string   `json:"code_name,omitempty"`
	Institution          *string  `json:"institution"`
	Seed                 *int     `json:"seed"`
	Emoji                string   `json:"emoji,omitempty"`
	UseInstitutionPrefix bool     `json:"use_institution_prefix"`
	BreakCategories      []string `json:"break_categories"`
}

// CreateTeam POSTs a new team and returns the created record.
func (c *Client) CreateTeam(ctx context.Context, p TeamPayload) (Team, error) {
	var out Team
	err := c.sendJSON(ctx, http.MethodPost, c.tournamentURL("teams"), p, &out)
	return out, err
}

// SpeakerPayload is the create body for a speaker.
type SpeakerPayload struct {
	Name       string   `json:"name"`
	Team       string   `json:"team"`
	Categories []string `json:"categories"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Anonymous  bool     `json:"anonymous"`
	CodeName   string   `json:"code_name,omitempty"`
	URLKey     string   `json:"url_key,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Pronoun    string   `json:"pronoun,omitempty"`
}

// CreateSpeaker POSTs a new speaker and returns the created record.
func (c *Client) CreateSpeaker(ctx context.Context, p SpeakerPayload) (Speaker, error) {
	var out Speaker
	err := c.sendJSON(ctx, http.MethodPost, c.tournamentURL("speakers"), p, &out)
	return out, err
}

// AdjudicatorPayload is the create body for a judge.
type AdjudicatorPayload struct {
	Name                 string   `json:"name"`
	Institution          *string  `json:"institution"`
	InstitutionConflicts []string `json:"institution_conflicts"`
	TeamConflicts        []string `json:"team_conflicts"`
	AdjudicatorConflicts []string `json:"adjudicator_conflicts"`
	Email                string   `json:"email,omitempty"`
	BaseScore            *float64 `json:"base_score,omitempty"`
	AdjCore              bool     `json:"adj_core"`
	Independent          bool     `json:"independent"`
}

// CreateAdjudicator POSTs a new judge and returns the created record.
func (c *Client) CreateAdjudicator(ctx context.Context, p AdjudicatorPayload) (Adjudicator, error) {
	var out Adjudicator
	err := c.sendJSON(ctx, http.MethodPost, c.tournamentURL("adjudicators"), p, &out)
	return out, err
}

// BreakCategoryPayload is the create body for a break category. The break
// size and priority defaults match what the importer always sends.
type BreakCategoryPayload struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Seq       int    `json:"seq"`
	BreakSize int    `json:"break_size"`
	IsGeneral bool   `json:"is_general"`
	Priority  int    `json:"priority"`
}

// CreateBreakCategory POSTs a new break category.
func (c *Client) CreateBreakCategory(ctx context.Context, p BreakCategoryPayload) (BreakCategory, error) {
	var out BreakCategory
	err := c.sendJSON(ctx, http.MethodPost, c.tournamentURL("break-categories"), p, &out)
	return out, err
}

// SpeakerCategoryPayload is the create body for a speaker category.
type SpeakerCategoryPayload struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Seq  int    `json:"seq"`
}

// CreateSpeakerCategory POSTs a new speaker category.
func (c *Client) CreateSpeakerCategory(ctx context.Context, p SpeakerCategoryPayload) (SpeakerCategory, error) {
	var out SpeakerCategory
	err := c.sendJSON(ctx, http.MethodPost, c.tournamentURL("speaker-categories"), p, &out)
	return out, err
}

// VenuePayload is the create body for a venue.
type VenuePayload struct {
	Name       string   `json:"name"`
	Priority   int64    `json:"priority"`
	Categories []string `json:"categories"`
}

// CreateVenue POSTs a new venue.
func (c *Client) CreateVenue(ctx context.Context, p VenuePayload) (Venue, error) {
	var out Venue
	err := c.sendJSON(ctx, http.MethodPost, c.tournamentURL("venues"), p, &out)
	return out, err
}

// VenueCategoryPayload is the create body for a venue category. The display
// mode "P" makes the category name part of the venue name.
type VenueCategoryPayload struct {
	Name               string   `json:"name"`
	Venues             []string `json:"venues"`
	DisplayInVenueName string   `json:"display_in_venue_name"`
}

// CreateVenueCategory POSTs a new venue category.
func (c *Client) CreateVenueCategory(ctx context.Context, p VenueCategoryPayload) error {
	return c.sendJSON(ctx, http.MethodPost, c.tournamentURL("venue-categories"), p, nil)
}

// PatchTeamConflicts PATCHes a team's institution conflict list and returns
// the server's canonical representation.
func (c *Client) PatchTeamConflicts(ctx context.Context, teamURL string, institutionConflicts []string) (Team, error) {
	var out Team
	err := c.sendJSON(ctx, http.MethodPatch, teamURL,
		map[string][]string{"institution_conflicts": institutionConflicts}, &out)
	return out, err
}

// PatchAdjudicatorConflicts PATCHes one of a judge's conflict lists. The
// field must be one of institution_conflicts, team_conflicts or
// adjudicator_conflicts.
func (c *Client) PatchAdjudicatorConflicts(ctx context.Context, judgeURL, field string, conflicts []string) (Adjudicator, error) {
	var out Adjudicator
	err := c.sendJSON(ctx, http.MethodPatch, judgeURL,
		map[string][]string{field: conflicts}, &out)
	return out, err
}

// DeleteResource removes a resource by its canonical URL. Used by overwrite
// runs to clear judges, teams and institutions.
func (c *Client) DeleteResource(ctx context.Context, url string) error {
	return c.deleteResource(ctx, url)
}

// SetAvailability marks a judge available (PUT) or unavailable (POST) for
// the round with the given sequence number.
func (c *Client) SetAvailability(ctx context.Context, roundSeq int, judgeURL string, available bool) error {
	method := http.MethodPost
	if available {
		method = http.MethodPut
	}
	url := c.tournamentURL("rounds", strconv.Itoa(roundSeq), "availabilities")
	return c.sendJSON(ctx, method, url, []string{judgeURL}, nil)
}
