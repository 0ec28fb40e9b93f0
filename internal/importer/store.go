package importer

import (
	"strings"
	"sync"

	"github.com/hvedges/tabsync/internal/api"
)

// store is the in-memory mirror of the remote entity set. It is populated
// once by the baseline fetch and appended to as creations succeed; the
// remote service stays the source of truth. One lock guards all caches —
// network latency, not cache contention, is the bottleneck.
type store struct {
	mu           sync.Mutex
	institutions []api.Institution
	teams        []api.Team
	speakers     []api.Speaker
	judges       []api.Adjudicator
	rounds       []api.Round
}

func (s *store) seed(institutions []api.Institution, teams []api.Team, speakers []api.Speaker, judges []api.Adjudicator, rounds []api.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.institutions = institutions
	s.teams = teams
	s.speakers = speakers
	s.judges = judges
	s.rounds = rounds
}

// clear empties every cache. Called after an overwrite run deletes the
// remote data so every row is treated as new.
func (s *store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.institutions = nil
	s.teams = nil
	s.speakers = nil
	s.judges = nil
}

// institutionsSnapshot returns a copy of the institution cache for
// lock-free reads inside worker tasks. Institutions are fully imported
// before any phase that reads the snapshot starts, so the copy is stable.
func (s *store) institutionsSnapshot() []api.Institution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Institution, len(s.institutions))
	copy(out, s.institutions)
	return out
}

func (s *store) roundsSnapshot() []api.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Round, len(s.rounds))
	copy(out, s.rounds)
	return out
}

func (s *store) teamsSnapshot() []api.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Team, len(s.teams))
	copy(out, s.teams)
	return out
}

func (s *store) judgesSnapshot() []api.Adjudicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Adjudicator, len(s.judges))
	copy(out, s.judges)
	return out
}

// institutionExists reports whether an institution matches the row's full
// name or short code exactly, as stored.
func (s *store) institutionExists(fullName, shortCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.institutions {
		if inst.Name == fullName || inst.Code == shortCode {
			return true
		}
	}
	return false
}

func (s *store) addInstitution(inst api.Institution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.institutions = append(s.institutions, inst)
}

// judgeExists matches on case-insensitive trimmed name equality.
func (s *store) judgeExists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.judges {
		if judgeMatches(j, name) {
			return true
		}
	}
	return false
}

func (s *store) addJudge(j api.Adjudicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judges = append(s.judges, j)
}

func (s *store) replaceJudge(j api.Adjudicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.judges {
		if s.judges[i].URL == j.URL {
			s.judges[i] = j
			return
		}
	}
	s.judges = append(s.judges, j)
}

// findTeam resolves a team by effective long name, then effective short
// name, then code name. Rules are ranked across the whole candidate set so
// a long-name match on one team beats a short-name match on another.
func (s *store) findTeam(longName, shortName, codeName string) (api.Team, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teams {
		if t.LongName == longName {
			return t, true
		}
	}
	if shortName != "" {
		for _, t := range s.teams {
			if t.ShortName == shortName {
				return t, true
			}
		}
	}
	if codeName != "" {
		for _, t := range s.teams {
			if t.CodeName == codeName {
				return t, true
			}
		}
	}
	return api.Team{}, false
}

func (s *store) addTeam(t api.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = append(s.teams, t)
}

func (s *store) replaceTeam(t api.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.teams {
		if s.teams[i].URL == t.URL {
			s.teams[i] = t
			return
		}
	}
	s.teams = append(s.teams, t)
}

// speakerExists matches by trimmed name or, when both sides carry one, by
// url_key. Matching is tournament-global, not per-team: two teams cannot
// both import a speaker of the same name (the second is skipped as a
// duplicate).
func (s *store) speakerExists(name, urlKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.speakers {
		if speakerMatches(sp, name, urlKey) {
			return true
		}
	}
	return false
}

func (s *store) addSpeaker(sp api.Speaker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakers = append(s.speakers, sp)
}

// institutionByKeyFold resolves a row's institution reference by name or
// code, case-insensitively. Returns nil for the empty key.
func (s *store) institutionByKeyFold(key string) *api.Institution {
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.institutions {
		if strings.EqualFold(s.institutions[i].Name, key) || strings.EqualFold(s.institutions[i].Code, key) {
			inst := s.institutions[i]
			return &inst
		}
	}
	return nil
}
