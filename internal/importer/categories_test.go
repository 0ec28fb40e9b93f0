package importer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hvedges/tabsync/internal/api"
)

func newCategoryCache(t *testing.T, fake *fakeTabbycat) *categoryCache {
	t.Helper()
	return &categoryCache{client: fake.client(t), logger: zap.NewNop()}
}

func TestBreakCategoryDefaults(t *testing.T) {
	fake := newFakeTabbycat(t)
	cc := newCategoryCache(t, fake)
	cc.seed([]api.BreakCategory{{URL: "b/1", Slug: "open", Seq: 1}}, nil)

	urls, err := cc.breakCategoryURLs(context.Background(), []string{"ESL"})
	require.NoError(t, err)
	require.Len(t, urls, 1)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.breakCats, 1)
	assert.Equal(t, "ESL", fake.breakCats[0].Name)
	assert.Equal(t, "esl", fake.breakCats[0].Slug)
	// Seq continues after the seeded category.
	assert.Equal(t, 2, fake.breakCats[0].Seq)
}

func TestBreakCategoryMatchesSlugCaseInsensitively(t *testing.T) {
	fake := newFakeTabbycat(t)
	cc := newCategoryCache(t, fake)
	cc.seed([]api.BreakCategory{{URL: "b/1", Slug: "esl", Seq: 1}}, nil)

	urls, err := cc.breakCategoryURLs(context.Background(), []string{" ESL "})
	require.NoError(t, err)
	assert.Equal(t, []string{"b/1"}, urls)
	assert.Equal(t, 0, fake.createCount("break-category"))
}

func TestBreakCategoryEmptyNameIsAnError(t *testing.T) {
	fake := newFakeTabbycat(t)
	cc := newCategoryCache(t, fake)

	_, err := cc.breakCategoryURLs(context.Background(), []string{"  "})
	require.Error(t, err)
	assert.Equal(t, 0, fake.createCount("break-category"))
}

// Concurrent references to the same missing category must materialize it
// exactly once, with every caller resolving to the same identity.
func TestBreakCategoryMaterializedOnceUnderContention(t *testing.T) {
	fake := newFakeTabbycat(t)
	cc := newCategoryCache(t, fake)

	const workers = 8
	results := make([][]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cc.breakCategoryURLs(context.Background(), []string{"Open"})
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, results[0][0], results[i][0])
	}
	assert.Equal(t, 1, fake.createCount("break-category"))
}

func TestSpeakerCategorySkipsBlankNames(t *testing.T) {
	fake := newFakeTabbycat(t)
	cc := newCategoryCache(t, fake)

	urls, err := cc.speakerCategoryURLs(context.Background(), []string{"", "Novice", "  "})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, 1, fake.createCount("speaker-category"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	// Speaker category slugs keep the name's casing.
	assert.Equal(t, "Novice", fake.speakerCats[0].Slug)
}
