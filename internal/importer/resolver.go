package importer

import (
	"strings"

	"github.com/hvedges/tabsync/internal/api"
	"github.com/hvedges/tabsync/internal/rows"
)

// Matching rules for deciding create-vs-skip. A row that matches nothing
// triggers creation; partial matches are never merged.

// judgeMatches uses case-insensitive trimmed exact name equality.
func judgeMatches(j api.Adjudicator, name string) bool {
	return strings.EqualFold(strings.TrimSpace(j.Name), strings.TrimSpace(name))
}

// speakerMatches uses trimmed case-sensitive name equality, or url_key
// equality when both the candidate and the row carry one.
func speakerMatches(sp api.Speaker, name, urlKey string) bool {
	if strings.TrimSpace(sp.Name) == strings.TrimSpace(name) {
		return true
	}
	return sp.URLKey != nil && urlKey != "" && *sp.URLKey == urlKey
}

// institutionByKeyExact resolves a judge row's institution reference by
// exact name or code equality.
func institutionByKeyExact(insts []api.Institution, key string) *api.Institution {
	if key == "" {
		return nil
	}
	for i := range insts {
		if insts[i].Name == key || insts[i].Code == key {
			return &insts[i]
		}
	}
	return nil
}

// effectiveTeamNames computes the long/short names a team row would have on
// the remote side. When the row or global prefix flag is set and the row's
// institution resolved, the institution name/code is prepended, which is how
// the server derives long_name and short_name from the references.
func effectiveTeamNames(row rows.TeamRow, inst *api.Institution, globalPrefix bool) (longName, shortName string) {
	longName = strings.TrimSpace(row.FullName)
	shortName = strings.TrimSpace(row.ShortName)
	if (row.UseInstitutionPrefix || globalPrefix) && inst != nil {
		longName = inst.Name + " " + longName
		if shortName != "" {
			shortName = inst.Code + " " + shortName
		}
	}
	return longName, shortName
}

// institutionConflictURLs collects the URLs of every institution whose name
// or code appears in the clash keys.
func institutionConflictURLs(insts []api.Institution, clashKeys []string) []string {
	urls := []string{}
	for _, inst := range insts {
		for _, key := range clashKeys {
			if inst.Name == key || inst.Code == key {
				urls = append(urls, inst.URL)
				break
			}
		}
	}
	return urls
}
