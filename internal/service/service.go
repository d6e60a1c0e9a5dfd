// service содержит бизнес-логику ingest-service: Dedup Gate,
// оркестратор прогонов и сценарии модерации поверх lifecycle.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/cache"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/config"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/enrich"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/metrics"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

var (
	// ErrNotFound — запись отсутствует.
	// Транспорт: codes.NotFound.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument — некорректные входные аргументы.
	// Транспорт: codes.InvalidArgument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidCursor — битый/чужой page_token.
	// Транспорт: codes.InvalidArgument.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrConflict — статус записи менялся конкурентно, повторы исчерпаны.
	// Транспорт: codes.Aborted.
	ErrConflict = errors.New("concurrent modification")
	// ErrRunInProgress — прогон уже выполняется в этом процессе.
	// Транспорт: codes.Aborted.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrMediaUnavailable — хранилище медиа не сконфигурировано.
	// Транспорт: codes.Unavailable.
	ErrMediaUnavailable = errors.New("media storage is not configured")
	// ErrMediaNotFound — загруженный объект не найден или не прошёл проверку.
	// Транспорт: codes.FailedPrecondition.
	ErrMediaNotFound = errors.New("uploaded media not found")
)

// Fetcher загружает сырые байты ленты.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Enricher — движок обогащения (см. enrich.Engine).
type Enricher interface {
	Enrich(ctx context.Context, item models.FeedItem, src models.SourceConfig) models.Enrichment
	Classify(item models.FeedItem, categoryHint string) enrich.Classification
}

// Deps — зависимости сервиса. Media, Seen и Metrics необязательны.
type Deps struct {
	Records  storage.RecordStorage
	Media    storage.MediaStorage
	Seen     cache.SeenCache
	Fetcher  Fetcher
	Enricher Enricher
	Metrics  *metrics.Metrics
}

// Service — описывает бизнес-логику ingest-service.
type Service struct {
	records  storage.RecordStorage
	media    storage.MediaStorage
	seen     cache.SeenCache
	fetcher  Fetcher
	enricher Enricher
	metrics  *metrics.Metrics
	cfg      config.Config

	running atomic.Bool
	now     func() time.Time

	lastMu sync.Mutex
	last   *models.RunSummary

	// Фоновые прогоны (StartRun) отменяются и дожидаются в Close.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New создаёт новый экземпляр Service.
func New(deps Deps, cfg config.Config) *Service {
	bgCtx, bgCancel := context.WithCancel(context.Background())

	return &Service{
		records:  deps.Records,
		media:    deps.Media,
		seen:     deps.Seen,
		fetcher:  deps.Fetcher,
		enricher: deps.Enricher,
		metrics:  deps.Metrics,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
}

// Close отменяет фоновые прогоны и ждёт их завершения.
func (s *Service) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// withTimeout — дедлайн для одного внешнего вызова; d <= 0 — без дедлайна.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}

// sleep ждёт d или отмены ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
