package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultRules())
	require.NoError(t, err)
	return c
}

// TestClassify_CategoryPriority — строительная лексика всегда выигрывает у событийной.
func TestClassify_CategoryPriority(t *testing.T) {
	t.Parallel()

	c := newDefaultClassifier(t)

	got := c.Classify(models.FeedItem{
		Title:   "Festival grounds close for construction",
		Excerpt: "The annual festival moves while construction continues.",
	}, "")
	require.Equal(t, "development", got.Category)
}

func TestClassify_Categories(t *testing.T) {
	t.Parallel()

	c := newDefaultClassifier(t)

	cases := []struct {
		title, excerpt, hint, want string
	}{
		{"Renovation begins on historic hotel", "", "", "development"},
		{"Summer workshop series for founders", "", "", "event"},
		{"Grand opening set for Saturday", "", "", "opening"},
		{"Grocer expands to a second location", "", "", "expansion"},
		{"Survey finds rents climbing", "", "", "data"},
		{"Local bank names new CEO", "", "", "business"},
		{"Local bank names new CEO", "", "finance", "finance"},
		// Событие и открытие одновременно: событие приоритетнее.
		{"Ribbon cutting event for new clinic", "", "", "event"},
	}

	for _, tc := range cases {
		got := c.Classify(models.FeedItem{Title: tc.title, Excerpt: tc.excerpt}, tc.hint)
		require.Equal(t, tc.want, got.Category, tc.title)
	}
}

func TestClassify_Location(t *testing.T) {
	t.Parallel()

	c := newDefaultClassifier(t)

	require.Equal(t, "Bricktown, OKC",
		c.Classify(models.FeedItem{Title: "Oklahoma City adds new Bricktown bar"}, "").LocationLabel,
		"neighborhood outranks city")
	require.Equal(t, "Edmond", c.Classify(models.FeedItem{Title: "Edmond council votes"}, "").LocationLabel)
	require.Equal(t, "Midwest City", c.Classify(models.FeedItem{Title: "Midwest City road work"}, "").LocationLabel)
	require.Equal(t, "OKC Metro", c.Classify(models.FeedItem{Title: "Statewide news"}, "").LocationLabel)
}

func TestClassify_TagsCappedInRuleOrder(t *testing.T) {
	t.Parallel()

	c := newDefaultClassifier(t)

	got := c.Classify(models.FeedItem{
		Title:   "A downtown coffee shop",
		Excerpt: "Next to new apartments, a tech startup, a hospital and a hotel. More coffee.",
	}, "")

	require.Equal(t, []string{"downtown", "food-beverage", "retail", "real-estate", "tech"}, got.Tags)
}

func TestClassify_NoTags(t *testing.T) {
	t.Parallel()

	c := newDefaultClassifier(t)

	got := c.Classify(models.FeedItem{Title: "Council meets"}, "")
	require.NotNil(t, got.Tags)
	require.Empty(t, got.Tags)
}

// TestClassify_EndToEndExample — кофейня в Bricktown.
func TestClassify_EndToEndExample(t *testing.T) {
	t.Parallel()

	c := newDefaultClassifier(t)

	got := c.Classify(models.FeedItem{
		Title:   "New coffee shop opens in Bricktown",
		Excerpt: "The roaster opens this week with a walk-up window.",
	}, "")

	require.Equal(t, "opening", got.Category)
	require.Equal(t, "Bricktown, OKC", got.LocationLabel)
	require.Contains(t, got.Tags, "downtown")
	require.Contains(t, got.Tags, "food-beverage")
	require.LessOrEqual(t, len(got.Tags), MaxTagsLimit)
}

const rulesYAML = `
default_category: general
metro_default: Tulsa Metro
categories:
  - priority: 20
    category: event
    keywords: ["FESTIVAL"]
  - priority: 10
    category: development
    keywords: ["construction"]
neighborhoods:
  - keyword: "Brady Arts"
    label: "Brady Arts, Tulsa"
cities:
  - keyword: tulsa
    label: Tulsa
tags:
  - tag: arts
    keywords: ["gallery"]
`

func TestLoadRules_OK(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o600))

	r, err := LoadRules(path)
	require.NoError(t, err)

	require.Equal(t, MaxTagsLimit, r.MaxTags)
	require.Equal(t, "development", r.Categories[0].Category, "sorted by priority")
	require.Equal(t, []string{"festival"}, r.Categories[1].Keywords, "keywords lower-cased")

	c, err := NewClassifier(r)
	require.NoError(t, err)

	got := c.Classify(models.FeedItem{Title: "Festival and construction at Brady Arts gallery"}, "")
	require.Equal(t, "development", got.Category)
	require.Equal(t, "Brady Arts, Tulsa", got.LocationLabel)
	require.Equal(t, []string{"arts"}, got.Tags)

	require.Equal(t, "general", c.Classify(models.FeedItem{Title: "nothing"}, "").Category)
}

func TestLoadRules_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`
default_category: x
metro_default: y
categories:
  - {priority: 1, category: a, keywords: [a]}
  - {priority: 1, category: b, keywords: [b]}
`), 0o600))

	_, err := LoadRules(dup)
	require.ErrorIs(t, err, ErrInvalidRules)

	_, err = LoadRules(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	_, err = NewClassifier(Rules{DefaultCategory: "x", MetroDefault: "y", MaxTags: 9})
	require.ErrorIs(t, err, ErrInvalidRules)
}
