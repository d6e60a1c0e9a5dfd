package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/config"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/enrich"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

// memStore — потокобезопасное in-memory хранилище с семантикой адаптеров.
type memStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]models.ContentRecord
	byLink  map[string]uuid.UUID
	inserts atomic.Int32

	// beforeUpdate однократно вызывается перед первым UpdateRecord вне блокировки.
	beforeUpdate func()
	hooked       atomic.Bool
}

func newMemStore() *memStore {
	return &memStore{
		byID:   make(map[uuid.UUID]models.ContentRecord),
		byLink: make(map[string]uuid.UUID),
	}
}

func (m *memStore) InsertRecord(_ context.Context, rec *models.ContentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byLink[rec.SourceLink]; ok {
		return storage.ErrAlreadyExists
	}

	m.byID[rec.ID] = *rec
	m.byLink[rec.SourceLink] = rec.ID
	m.inserts.Add(1)

	return nil
}

func (m *memStore) ExistsBySourceLink(_ context.Context, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.byLink[link]
	return ok, nil
}

func (m *memStore) RecordByID(_ context.Context, id uuid.UUID) (*models.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &rec, nil
}

func (m *memStore) ListByStatus(_ context.Context, status models.Status, opts models.ListOptions) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []models.ContentRecord
	for _, rec := range m.byID {
		if rec.Status == status {
			items = append(items, rec)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	if int(opts.Limit) < len(items) {
		items = items[:opts.Limit]
	}

	return &models.Page{Items: items}, nil
}

func (m *memStore) UpdateRecord(_ context.Context, rec *models.ContentRecord, expected models.Status) error {
	if m.beforeUpdate != nil && m.hooked.CompareAndSwap(false, true) {
		m.beforeUpdate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byID[rec.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected || cur.Version != rec.Version {
		return storage.ErrStaleRecord
	}

	rec.Version++
	m.byID[rec.ID] = *rec

	return nil
}

func (m *memStore) links() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.byLink))
	for l := range m.byLink {
		out = append(out, l)
	}
	sort.Strings(out)

	return out
}

// stubFetcher отдаёт заранее заданные ленты по URL.
type stubFetcher struct {
	mu     sync.Mutex
	feeds  map[string][]byte
	errs   map[string]error
	called []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.called = append(f.called, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}

	raw, ok := f.feeds[url]
	if !ok {
		return nil, errors.New("unknown feed")
	}

	return raw, nil
}

// stubEnricher — настоящий классификатор плюс счётчик вызовов обогащения.
type stubEnricher struct {
	cl    *enrich.Classifier
	calls atomic.Int32
}

func newStubEnricher(t *testing.T) *stubEnricher {
	t.Helper()

	cl, err := enrich.NewClassifier(enrich.DefaultRules())
	require.NoError(t, err)

	return &stubEnricher{cl: cl}
}

func (e *stubEnricher) Enrich(_ context.Context, item models.FeedItem, src models.SourceConfig) models.Enrichment {
	e.calls.Add(1)
	cls := e.cl.Classify(item, src.CategoryHint)

	return models.Enrichment{
		InsightText:   "insight for " + item.Title,
		Category:      cls.Category,
		LocationLabel: cls.LocationLabel,
		Tags:          cls.Tags,
	}
}

func (e *stubEnricher) Classify(item models.FeedItem, hint string) enrich.Classification {
	return e.cl.Classify(item, hint)
}

type entry struct {
	title, link, excerpt string
	published            time.Time
}

// rss собирает RSS 2.0 из элементов.
func rss(entries ...entry) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for _, e := range entries {
		fmt.Fprintf(&b, "<item><title>%s</title><link>%s</link><description>%s</description><pubDate>%s</pubDate></item>",
			e.title, e.link, e.excerpt, e.published.Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)

	return []byte(b.String())
}

// okcEntries — n свежих элементов про Bricktown с уникальными ссылками.
func okcEntries(prefix string, n int) []entry {
	out := make([]entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entry{
			title:     fmt.Sprintf("Bricktown shop %s-%d opens", prefix, i),
			link:      fmt.Sprintf("https://%s.example/%d", prefix, i),
			excerpt:   "A new shop opens this week.",
			published: time.Now().Add(-10 * 24 * time.Hour),
		})
	}

	return out
}

func testConfig(sources ...models.SourceConfig) config.Config {
	return config.Config{
		Sources: sources,
		Pipeline: config.PipelineConfig{
			Interval:      time.Hour,
			Window:        60 * 24 * time.Hour,
			TargetNew:     10,
			SourceWorkers: 1,
			GeoKeywords:   []string{"Bricktown"},
		},
		Timeouts: config.TimeoutConfig{
			Service:    time.Second,
			Fetch:      time.Second,
			Generation: time.Second,
			Store:      time.Second,
		},
		Limits: config.LimitsConfig{Default: 20, Max: 50},
	}
}

type fixture struct {
	svc      *Service
	store    *memStore
	fetcher  *stubFetcher
	enricher *stubEnricher
	sources  []models.SourceConfig
}

// newFixture — сервис на memStore с лентами feeds (имя источника → элементы).
func newFixture(t *testing.T, feeds map[string][]entry, order ...string) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		fetcher:  &stubFetcher{feeds: map[string][]byte{}, errs: map[string]error{}},
		enricher: newStubEnricher(t),
	}

	for _, name := range order {
		url := "https://feeds.example/" + name
		f.sources = append(f.sources, models.SourceConfig{Name: name, URL: url})
		if entries, ok := feeds[name]; ok {
			f.fetcher.feeds[url] = rss(entries...)
		}
	}

	f.svc = New(Deps{Records: f.store, Fetcher: f.fetcher, Enricher: f.enricher}, testConfig(f.sources...))

	return f
}
