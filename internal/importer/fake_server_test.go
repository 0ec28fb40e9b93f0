package importer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hvedges/tabsync/internal/api"
)

const fakeSlug = "cup"

// fakeTabbycat is an in-memory stand-in for the remote service. It assigns
// ids and canonical URLs, derives team long/short names the way the server
// does (institution prefix included), maintains team speaker lists, and
// counts creations and deletions so tests can assert idempotence.
type fakeTabbycat struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	nextID       int
	institutions []api.Institution
	teams        []api.Team
	speakers     []api.Speaker
	judges       []api.Adjudicator
	rounds       []api.Round
	breakCats    []api.BreakCategory
	speakerCats  []api.SpeakerCategory
	venues       []api.Venue
	venueCats    []api.VenueCategoryPayload

	creates     map[string]int
	patches     int
	deleteOrder []string
	available   map[int][]string
	unavailable map[int][]string
}

func newFakeTabbycat(t *testing.T) *fakeTabbycat {
	t.Helper()
	f := &fakeTabbycat{
		t:           t,
		creates:     make(map[string]int),
		available:   make(map[int][]string),
		unavailable: make(map[int][]string),
	}

	prefix := "/api/v1/tournaments/" + fakeSlug
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/institutions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.institutions)
	})
	mux.HandleFunc("POST /api/v1/institutions", func(w http.ResponseWriter, r *http.Request) {
		var p api.InstitutionPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		inst := api.Institution{
			ID:     f.allocID(),
			Name:   p.Name,
			Code:   p.Code,
			Region: p.Region,
		}
		inst.URL = f.resourceURL("institutions", inst.ID)
		f.institutions = append(f.institutions, inst)
		f.creates["institution"]++
		writeJSON(w, inst)
	})
	mux.HandleFunc("DELETE /api/v1/institutions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		for i, inst := range f.institutions {
			if inst.ID == id {
				f.institutions = append(f.institutions[:i], f.institutions[i+1:]...)
				break
			}
		}
		f.deleteOrder = append(f.deleteOrder, "institution")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET "+prefix+"/teams", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.teams)
	})
	mux.HandleFunc("POST "+prefix+"/teams", func(w http.ResponseWriter, r *http.Request) {
		var p api.TeamPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		team := api.Team{
			ID:                   f.allocID(),
			Reference:            p.Reference,
			ShortReference:       p.ShortReference,
			LongName:             p.Reference,
			ShortName:            p.ShortReference,
			CodeName:             p.CodeName,
			Emoji:                p.Emoji,
			Seed:                 p.Seed,
			Institution:          p.Institution,
			UseInstitutionPrefix: p.UseInstitutionPrefix,
			BreakCategories:      p.BreakCategories,
			InstitutionConflicts: []string{},
			Speakers:             []api.Speaker{},
		}
		if p.UseInstitutionPrefix && p.Institution != nil {
			if inst := f.institutionByURL(*p.Institution); inst != nil {
				team.LongName = inst.Name + " " + p.Reference
				if p.ShortReference != "" {
					team.ShortName = inst.Code + " " + p.ShortReference
				}
			}
		}
		team.URL = f.tournamentResourceURL("teams", team.ID)
		f.teams = append(f.teams, team)
		f.creates["team"]++
		writeJSON(w, team)
	})
	mux.HandleFunc("GET "+prefix+"/teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		for _, team := range f.teams {
			if team.ID == id {
				writeJSON(w, team)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("PATCH "+prefix+"/teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p map[string][]string
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		for i := range f.teams {
			if f.teams[i].ID == id {
				if conflicts, ok := p["institution_conflicts"]; ok {
					f.teams[i].InstitutionConflicts = conflicts
				}
				f.patches++
				writeJSON(w, f.teams[i])
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("DELETE "+prefix+"/teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		for i, team := range f.teams {
			if team.ID == id {
				f.teams = append(f.teams[:i], f.teams[i+1:]...)
				break
			}
		}
		f.deleteOrder = append(f.deleteOrder, "team")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET "+prefix+"/adjudicators", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.judges)
	})
	mux.HandleFunc("POST "+prefix+"/adjudicators", func(w http.ResponseWriter, r *http.Request) {
		var p api.AdjudicatorPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		judge := api.Adjudicator{
			ID:                   f.allocID(),
			Name:                 p.Name,
			Institution:          p.Institution,
			InstitutionConflicts: p.InstitutionConflicts,
			TeamConflicts:        p.TeamConflicts,
			AdjudicatorConflicts: p.AdjudicatorConflicts,
			Email:                p.Email,
			BaseScore:            p.BaseScore,
			AdjCore:              p.AdjCore,
			Independent:          p.Independent,
		}
		judge.URL = f.tournamentResourceURL("adjudicators", judge.ID)
		f.judges = append(f.judges, judge)
		f.creates["judge"]++
		writeJSON(w, judge)
	})
	mux.HandleFunc("PATCH "+prefix+"/adjudicators/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p map[string][]string
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		for i := range f.judges {
			if f.judges[i].ID == id {
				if conflicts, ok := p["institution_conflicts"]; ok {
					f.judges[i].InstitutionConflicts = conflicts
				}
				if conflicts, ok := p["team_conflicts"]; ok {
					f.judges[i].TeamConflicts = conflicts
				}
				if conflicts, ok := p["adjudicator_conflicts"]; ok {
					f.judges[i].AdjudicatorConflicts = conflicts
				}
				f.patches++
				writeJSON(w, f.judges[i])
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("DELETE "+prefix+"/adjudicators/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		for i, judge := range f.judges {
			if judge.ID == id {
				f.judges = append(f.judges[:i], f.judges[i+1:]...)
				break
			}
		}
		f.deleteOrder = append(f.deleteOrder, "judge")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET "+prefix+"/speakers", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.speakers)
	})
	mux.HandleFunc("POST "+prefix+"/speakers", func(w http.ResponseWriter, r *http.Request) {
		var p api.SpeakerPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		speaker := api.Speaker{
			ID:         f.allocID(),
			Name:       p.Name,
			Team:       p.Team,
			Categories: p.Categories,
			Email:      p.Email,
			Phone:      p.Phone,
			Anonymous:  p.Anonymous,
			CodeName:   p.CodeName,
			Gender:     p.Gender,
			Pronoun:    p.Pronoun,
		}
		if p.URLKey != "" {
			key := p.URLKey
			speaker.URLKey = &key
		}
		speaker.URL = f.tournamentResourceURL("speakers", speaker.ID)
		f.speakers = append(f.speakers, speaker)
		for i := range f.teams {
			if f.teams[i].URL == p.Team {
				f.teams[i].Speakers = append(f.teams[i].Speakers, speaker)
			}
		}
		f.creates["speaker"]++
		writeJSON(w, speaker)
	})

	mux.HandleFunc("GET "+prefix+"/rounds", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.rounds)
	})
	mux.HandleFunc("PUT "+prefix+"/rounds/{seq}/availabilities", func(w http.ResponseWriter, r *http.Request) {
		var urls []string
		mustDecode(f.t, r, &urls)
		f.mu.Lock()
		defer f.mu.Unlock()
		seq, _ := strconv.Atoi(r.PathValue("seq"))
		f.available[seq] = append(f.available[seq], urls...)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST "+prefix+"/rounds/{seq}/availabilities", func(w http.ResponseWriter, r *http.Request) {
		var urls []string
		mustDecode(f.t, r, &urls)
		f.mu.Lock()
		defer f.mu.Unlock()
		seq, _ := strconv.Atoi(r.PathValue("seq"))
		f.unavailable[seq] = append(f.unavailable[seq], urls...)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET "+prefix+"/break-categories", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.breakCats)
	})
	mux.HandleFunc("POST "+prefix+"/break-categories", func(w http.ResponseWriter, r *http.Request) {
		var p api.BreakCategoryPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		cat := api.BreakCategory{ID: f.allocID(), Name: p.Name, Slug: p.Slug, Seq: p.Seq}
		cat.URL = f.tournamentResourceURL("break-categories", cat.ID)
		f.breakCats = append(f.breakCats, cat)
		f.creates["break-category"]++
		writeJSON(w, cat)
	})
	mux.HandleFunc("GET "+prefix+"/speaker-categories", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.speakerCats)
	})
	mux.HandleFunc("POST "+prefix+"/speaker-categories", func(w http.ResponseWriter, r *http.Request) {
		var p api.SpeakerCategoryPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		cat := api.SpeakerCategory{ID: f.allocID(), Name: p.Name, Slug: p.Slug, Seq: p.Seq}
		cat.URL = f.tournamentResourceURL("speaker-categories", cat.ID)
		f.speakerCats = append(f.speakerCats, cat)
		f.creates["speaker-category"]++
		writeJSON(w, cat)
	})

	mux.HandleFunc("POST "+prefix+"/venues", func(w http.ResponseWriter, r *http.Request) {
		var p api.VenuePayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		venue := api.Venue{ID: f.allocID(), Name: p.Name, Priority: p.Priority}
		venue.URL = f.tournamentResourceURL("venues", venue.ID)
		f.venues = append(f.venues, venue)
		f.creates["venue"]++
		writeJSON(w, venue)
	})
	mux.HandleFunc("POST "+prefix+"/venue-categories", func(w http.ResponseWriter, r *http.Request) {
		var p api.VenueCategoryPayload
		mustDecode(f.t, r, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.venueCats = append(f.venueCats, p)
		f.creates["venue-category"]++
		writeJSON(w, p)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// client builds an api.Client pointed at the fake server, with the backoff
// unit shrunk so any throttling would not stall the test.
func (f *fakeTabbycat) client(t *testing.T) *api.Client {
	t.Helper()
	c := api.New(f.srv.URL, fakeSlug, "test-key", nil)
	c.SetBackoffUnit(time.Millisecond)
	return c
}

func (f *fakeTabbycat) allocID() int {
	f.nextID++
	return f.nextID
}

func (f *fakeTabbycat) resourceURL(kind string, id int) string {
	return fmt.Sprintf("%s/api/v1/%s/%d", f.srv.URL, kind, id)
}

func (f *fakeTabbycat) tournamentResourceURL(kind string, id int) string {
	return fmt.Sprintf("%s/api/v1/tournaments/%s/%s/%d", f.srv.URL, fakeSlug, kind, id)
}

func (f *fakeTabbycat) institutionByURL(url string) *api.Institution {
	for i := range f.institutions {
		if f.institutions[i].URL == url {
			return &f.institutions[i]
		}
	}
	return nil
}

// seedInstitution inserts an institution directly, bypassing the counters.
func (f *fakeTabbycat) seedInstitution(name, code string) api.Institution {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := api.Institution{ID: f.allocID(), Name: name, Code: code}
	inst.URL = f.resourceURL("institutions", inst.ID)
	f.institutions = append(f.institutions, inst)
	return inst
}

func (f *fakeTabbycat) seedTeam(longName, shortName string, speakerNames ...string) api.Team {
	f.mu.Lock()
	defer f.mu.Unlock()
	team := api.Team{
		ID:                   f.allocID(),
		Reference:            longName,
		LongName:             longName,
		ShortName:            shortName,
		InstitutionConflicts: []string{},
	}
	team.URL = f.tournamentResourceURL("teams", team.ID)
	for _, name := range speakerNames {
		speaker := api.Speaker{ID: f.allocID(), Name: name, Team: team.URL}
		speaker.URL = f.tournamentResourceURL("speakers", speaker.ID)
		team.Speakers = append(team.Speakers, speaker)
		f.speakers = append(f.speakers, speaker)
	}
	f.teams = append(f.teams, team)
	return team
}

func (f *fakeTabbycat) seedJudge(name string) api.Adjudicator {
	f.mu.Lock()
	defer f.mu.Unlock()
	judge := api.Adjudicator{
		ID:                   f.allocID(),
		Name:                 name,
		InstitutionConflicts: []string{},
		TeamConflicts:        []string{},
		AdjudicatorConflicts: []string{},
	}
	judge.URL = f.tournamentResourceURL("adjudicators", judge.ID)
	f.judges = append(f.judges, judge)
	return judge
}

func (f *fakeTabbycat) seedRound(seq int, name, abbreviation string) api.Round {
	f.mu.Lock()
	defer f.mu.Unlock()
	round := api.Round{ID: f.allocID(), Seq: seq, Name: name, Abbreviation: abbreviation}
	round.URL = f.tournamentResourceURL("rounds", round.ID)
	f.rounds = append(f.rounds, round)
	return round
}

func (f *fakeTabbycat) createCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[kind]
}

func (f *fakeTabbycat) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches
}

func (f *fakeTabbycat) teamByID(id int) (api.Team, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, team := range f.teams {
		if team.ID == id {
			return team, true
		}
	}
	return api.Team{}, false
}

func (f *fakeTabbycat) judgeByID(id int) (api.Adjudicator, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, judge := range f.judges {
		if judge.ID == id {
			return judge, true
		}
	}
	return api.Adjudicator{}, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}

func mustDecode(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("failed to decode %s %s body: %v", r.Method, r.URL.Path, err)
	}
}
