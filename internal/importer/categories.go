package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hvedges/tabsync/internal/api"
)

// categoryCache lazily materializes break and speaker categories. The mutex
// spans lookup and creation so two concurrent rows referencing the same
// missing name cannot both create it: the second caller observes the first
// caller's entry. Materialization is monotonic for a run — once a name is
// created, every later reference resolves to the same identity.
type categoryCache struct {
	client *api.Client
	logger *zap.Logger

	mu       sync.Mutex
	breaks   []api.BreakCategory
	speakers []api.SpeakerCategory
}

func (cc *categoryCache) seed(breaks []api.BreakCategory, speakers []api.SpeakerCategory) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.breaks = breaks
	cc.speakers = speakers
}

func (cc *categoryCache) clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.breaks = nil
	cc.speakers = nil
}

// slugMatches compares a category slug with a requested name,
// case-insensitively after trimming.
func slugMatches(slug, name string) bool {
	return strings.EqualFold(strings.TrimSpace(slug), strings.TrimSpace(name))
}

// breakCategoryURLs resolves the named break categories, creating any that
// are missing with seq = count+1 and the standard defaults (break size 4,
// not general, priority 1).
func (cc *categoryCache) breakCategoryURLs(ctx context.Context, names []string) ([]string, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	urls := make([]string, 0, len(names))
outer:
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty break category name")
		}
		for _, cat := range cc.breaks {
			if slugMatches(cat.Slug, name) {
				urls = append(urls, cat.URL)
				continue outer
			}
		}

		cat, err := cc.client.CreateBreakCategory(ctx, api.BreakCategoryPayload{
			Name:      name,
			Slug:      strings.ToLower(name),
			Seq:       len(cc.breaks) + 1,
			BreakSize: 4,
			IsGeneral: false,
			Priority:  1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create break category %q: %w", name, err)
		}
		cc.logger.Info("created break category",
			zap.String("name", cat.Name), zap.Int("id", cat.ID))
		cc.breaks = append(cc.breaks, cat)
		urls = append(urls, cat.URL)
	}
	return urls, nil
}

// speakerCategoryURLs resolves the named speaker categories, creating any
// that are missing. Speaker categories carry no break-size fields.
func (cc *categoryCache) speakerCategoryURLs(ctx context.Context, names []string) ([]string, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	urls := make([]string, 0, len(names))
outer:
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		for _, cat := range cc.speakers {
			if slugMatches(cat.Slug, name) {
				urls = append(urls, cat.URL)
				continue outer
			}
		}

		cat, err := cc.client.CreateSpeakerCategory(ctx, api.SpeakerCategoryPayload{
			Name: name,
			Slug: name,
			Seq:  len(cc.speakers) + 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create speaker category %q: %w", name, err)
		}
		cc.logger.Info("created speaker category",
			zap.String("name", cat.Name), zap.Int("id", cat.ID))
		cc.speakers = append(cc.speakers, cat)
		urls = append(urls, cat.URL)
	}
	return urls, nil
}
