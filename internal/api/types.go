package api

// Resource types mirror the subset of the Tabbycat v1 API that the importer
// touches. Every remote object carries a server-assigned numeric id and a
// canonical URL; the URL doubles as the reference value other resources use
// to point at it (a team's institution field holds the institution's URL).

// Institution is a tournament-independent institution record.
type Institution struct {
	ID     int     `json:"id"`
	URL    string  `json:"url"`
	Name   string  `json:"name"`
	Code   string  `json:"code"`
	Region *string `json:"region"`
}

// Team is a per-tournament team. LongName and ShortName are derived by the
// server from the reference fields (with the institution prefix applied when
// UseInstitutionPrefix is set), so matching runs against them rather than
// against the raw references.
type Team struct {
	ID                   int       `json:"id"`
	URL                  string    `json:"url"`
	Reference            string    `json:"reference"`
	ShortReference       string    `json:"short_reference"`
	LongName             string    `json:"long_name"`
	ShortName            string    `json:"short_name"`
	CodeName             string    `json:"code_name"`
	Emoji                string    `json:"emoji"`
	Seed                 *int      `json:"seed"`
	Institution          *string   `json:"institution"`
	UseInstitutionPrefix bool      `json:"use_institution_prefix"`
	BreakCategories      []string  `json:"break_categories"`
	InstitutionConflicts []string  `json:"institution_conflicts"`
	Speakers             []Speaker `json:"speakers"`
}

// Speaker belongs to exactly one team; the team's speaker list is a derived
// field maintained by the server.
type Speaker struct {
	ID         int      `json:"id"`
	URL        string   `json:"url"`
	Name       string   `json:"name"`
	Team       string   `json:"team"`
	Categories []string `json:"categories"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Anonymous  bool     `json:"anonymous"`
	CodeName   string   `json:"code_name"`
	URLKey     *string  `json:"url_key"`
	Gender     string   `json:"gender"`
	Pronoun    string   `json:"pronoun"`
}

// Adjudicator is a judge. The three conflict lists hold URLs of the
// conflicting resources and are append-only during a run.
type Adjudicator struct {
	ID                   int      `json:"id"`
	URL                  string   `json:"url"`
	Name                 string   `json:"name"`
	Institution          *string  `json:"institution"`
	InstitutionConflicts []string `json:"institution_conflicts"`
	TeamConflicts        []string `json:"team_conflicts"`
	AdjudicatorConflicts []string `json:"adjudicator_conflicts"`
	Email                string   `json:"email"`
	BaseScore            *float64 `json:"base_score"`
	AdjCore              bool     `json:"adj_core"`
	Independent          bool     `json:"independent"`
}

// BreakCategory is a team break category (e.g. "ESL"). Slug is the matching
// key, compared case-insensitively.
type BreakCategory struct {
	ID   int    `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Seq  int    `json:"seq"`
}

// SpeakerCategory is a speaker category (e.g. "Novice").
type SpeakerCategory struct {
	ID   int    `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Seq  int    `json:"seq"`
}

// Venue is a debating room.
type Venue struct {
	ID          int    `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Priority    int64  `json:"priority"`
	ExternalURL string `json:"external_url"`
	Barcode     string `json:"barcode"`
}

// Round identifies a tournament round; availability marking addresses rounds
// by their sequence number.
type Round struct {
	ID           int    `json:"id"`
	URL          string `json:"url"`
	Seq          int    `json:"seq"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}
