// Package rows models the tabular import format: one CSV file per entity
// kind, columns mapped to the remote resource fields. Team rows flatten an
// unbounded number of speaker sub-records into speakerN_field columns, which
// are regrouped here before the importer sees them.
//
// Parsing failures are local input errors: they surface before any network
// call is made.
package rows

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// InstitutionRow is one row of the institutions file. Empty Region means no
// region is sent.
type InstitutionRow struct {
	FullName  string
	ShortCode string
	Region    string
}

// RoomRow is one row of the rooms file.
type RoomRow struct {
	Name        string
	Priority    int64
	Categories  []string
	ExternalURL string
	Barcode     string
}

// JudgeRow is one row of the judges file. Availability holds the
// round names/abbreviations the judge is available for.
type JudgeRow struct {
	Name               string
	Institution        string
	InstitutionClashes []string
	Email              string
	IsChairEligible    bool
	IsIndependent      bool
	BaseScore          *float64
	Availability       []string
}

// SpeakerRow is one regrouped speaker sub-record of a team row.
type SpeakerRow struct {
	Name       string
	Categories []string
	Email      string
	Phone      string
	Anonymous  bool
	CodeName   string
	URLKey     string
	Gender     string
	Pronoun    string
}

// TeamRow is one row of the teams file.
type TeamRow struct {
	FullName             string
	ShortName            string
	Categories           []string
	CodeName             string
	Institution          string
	Seed                 *int
	Emoji                string
	UseInstitutionPrefix bool
	Speakers             []SpeakerRow
}

// ClashRow names two free-text keys to be linked as a pairwise conflict.
type ClashRow struct {
	Object1 string
	Object2 string
}

// ParseBool parses the spreadsheet truthy format. The empty cell is false;
// anything outside the accepted sets is an input error.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1", "on", "y", "yes":
		return true, nil
	case "f", "false", "0", "off", "n", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("value %q must be truthy (t, true, 1, on, y, yes) or falsey (f, false, 0, off, n, no)", s)
	}
}

// SplitTags splits a comma-separated cell, dropping blank entries.
func SplitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeGender maps the common spellings onto Tabbycat's single-letter
// codes and passes everything else through unchanged.
func NormalizeGender(s string) string {
	switch strings.ToLower(s) {
	case "male":
		return "M"
	case "female":
		return "F"
	case "other":
		return "O"
	default:
		return s
	}
}

// readRecords reads a header-mapped CSV into one map per row. All cells are
// trimmed.
func readRecords(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	header := all[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []map[string]string
	for _, row := range all[1:] {
		rec := make(map[string]string, len(header))
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			rec[header[i]] = strings.TrimSpace(cell)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadInstitutions loads the institutions file.
func ReadInstitutions(path string) ([]InstitutionRow, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	var out []InstitutionRow
	for _, rec := range records {
		if rec["full_name"] == "" {
			return nil, fmt.Errorf("institution row in %s is missing full_name", path)
		}
		out = append(out, InstitutionRow{
			FullName:  rec["full_name"],
			ShortCode: rec["short_code"],
			Region:    rec["region"],
		})
	}
	return out, nil
}

// ReadRooms loads the rooms file.
func ReadRooms(path string) ([]RoomRow, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	var out []RoomRow
	for i, rec := range records {
		priority, err := strconv.ParseInt(rec["priority"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("room row %d in %s has invalid priority %q: %w", i+1, path, rec["priority"], err)
		}
		out = append(out, RoomRow{
			Name:        rec["name"],
			Priority:    priority,
			Categories:  SplitTags(rec["categories"]),
			ExternalURL: rec["external_url"],
			Barcode:     rec["barcode"],
		})
	}
	return out, nil
}

// ReadJudges loads the judges file.
func ReadJudges(path string) ([]JudgeRow, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	var out []JudgeRow
	for i, rec := range records {
		row := JudgeRow{
			Name:               rec["name"],
			Institution:        rec["institution"],
			InstitutionClashes: SplitTags(rec["institution_clashes"]),
			Email:              rec["email"],
			Availability:       SplitTags(rec["availability"]),
		}
		if row.Name == "" {
			return nil, fmt.Errorf("judge row %d in %s is missing name", i+1, path)
		}
		if row.IsChairEligible, err = ParseBool(rec["is_ca"]); err != nil {
			return nil, fmt.Errorf("judge %s: is_ca: %w", row.Name, err)
		}
		if row.IsIndependent, err = ParseBool(rec["is_ia"]); err != nil {
			return nil, fmt.Errorf("judge %s: is_ia: %w", row.Name, err)
		}
		if s := rec["base_score"]; s != "" {
			score, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("judge %s has invalid base_score %q: %w", row.Name, s, err)
			}
			row.BaseScore = &score
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadTeams loads the teams file, regrouping the flattened speaker columns
// of each row.
func ReadTeams(path string) ([]TeamRow, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	var out []TeamRow
	for i, rec := range records {
		row := TeamRow{
			FullName:    rec["full_name"],
			ShortName:   rec["short_name"],
			Categories:  SplitTags(rec["categories"]),
			CodeName:    rec["code_name"],
			Institution: rec["institution"],
			Emoji:       rec["emoji"],
		}
		if row.FullName == "" {
			return nil, fmt.Errorf("team row %d in %s is missing full_name", i+1, path)
		}
		if row.UseInstitutionPrefix, err = ParseBool(rec["use_institution_prefix"]); err != nil {
			return nil, fmt.Errorf("team %s: use_institution_prefix: %w", row.FullName, err)
		}
		if s := rec["seed"]; s != "" {
			seed, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("team %s has invalid seed %q: %w", row.FullName, s, err)
			}
			row.Seed = &seed
		}
		if row.Speakers, err = GroupSpeakers(rec); err != nil {
			return nil, fmt.Errorf("team %s: %w", row.FullName, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadClashes loads the clashes file. The file has no header row: each line
// is a pair of free-text keys.
func ReadClashes(path string) ([]ClashRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var out []ClashRow
	for i, row := range all {
		if len(row) < 2 {
			return nil, fmt.Errorf("clash row %d in %s needs two columns", i+1, path)
		}
		out = append(out, ClashRow{
			Object1: strings.TrimSpace(row[0]),
			Object2: strings.TrimSpace(row[1]),
		})
	}
	return out, nil
}

// GroupSpeakers regroups speakerN_field columns of one record into speaker
// rows, ordered by index. Buckets whose fields are all blank are dropped; a
// non-blank bucket without a name is an input error.
func GroupSpeakers(rec map[string]string) ([]SpeakerRow, error) {
	buckets := make(map[int]map[string]string)
	for key, value := range rec {
		rest, ok := strings.CutPrefix(key, "speaker")
		if !ok {
			continue
		}
		idxStr, field, ok := strings.Cut(rest, "_")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil {
			return nil, fmt.Errorf("column %q has a non-numeric speaker index", key)
		}
		bucket, ok := buckets[idx]
		if !ok {
			bucket = make(map[string]string)
			buckets[idx] = bucket
		}
		bucket[field] = value
	}

	indexes := make([]int, 0, len(buckets))
	for idx := range buckets {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var speakers []SpeakerRow
	for _, idx := range indexes {
		bucket := buckets[idx]
		blank := true
		for _, v := range bucket {
			if strings.TrimSpace(v) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}
		if strings.TrimSpace(bucket["name"]) == "" {
			return nil, fmt.Errorf("speaker %d has fields set but no name", idx)
		}
		anonymous := strings.EqualFold(bucket["anonymous"], "true")
		speakers = append(speakers, SpeakerRow{
			Name:       bucket["name"],
			Categories: SplitTags(bucket["categories"]),
			Email:      bucket["email"],
			Phone:      bucket["phone"],
			Anonymous:  anonymous,
			CodeName:   bucket["code_name"],
			URLKey:     bucket["url_key"],
			Gender:     NormalizeGender(bucket["gender"]),
			Pronoun:    bucket["pronoun"],
		})
	}
	return speakers, nil
}
