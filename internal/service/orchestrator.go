package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/feed"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/filter"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/lifecycle"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/metrics"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// RunBatch прогоняет источники через конвейер:
// загрузка → разбор → гео-фильтр → фильтр свежести → Dedup Gate →
// обогащение → создание записи в статусе queued.
//
// Особенности:
//   - источники обрабатываются в заданном порядке (pipeline.source_workers > 1
//     разрешает параллельную обработку), между загрузками - pipeline.fetch_delay;
//   - сбой загрузки фиксируется в сводке источника, прогон продолжается;
//   - поэлементные сбои только увеличивают счётчик ошибок;
//   - как только создано targetNew записей, обработка останавливается
//     целиком; непосещённые источники в сводку не попадают.
//
// Ошибки:
//   - ErrInvalidArgument — window <= 0, targetNew <= 0 или источник без allow-list;
//   - ErrRunInProgress — в процессе уже идёт прогон.
//
// Сводка возвращается всегда, когда прогон стартовал, в том числе при отмене ctx.
func (s *Service) RunBatch(ctx context.Context, sources []models.SourceConfig, window time.Duration, targetNew int) (*models.RunSummary, error) {
	const op = "service.orchestrator.RunBatch"

	p, err := s.plan(sources, window, targetNew)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s: %w", op, ErrRunInProgress)
	}
	defer s.running.Store(false)

	return s.execute(ctx, p), nil
}

// StartRun запускает прогон по источникам из конфига в фоне и сразу
// возвращается. Ошибки валидации и ErrRunInProgress - синхронно.
// Итог прогона доступен через LastRun.
func (s *Service) StartRun(ctx context.Context, window time.Duration, targetNew int) error {
	const op = "service.orchestrator.StartRun"

	p, err := s.plan(s.cfg.AllSources(), window, targetNew)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", op, ErrRunInProgress)
	}

	// Прогон переживает HTTP-запрос, запустивший его, но не Close.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.bgCtx, cancel)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.running.Store(false)
		defer cancel()
		defer stop()

		s.execute(runCtx, p)
	}()

	return nil
}

// LastRun возвращает сводку последнего завершённого прогона, если он был.
func (s *Service) LastRun() (*models.RunSummary, bool) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()

	if s.last == nil {
		return nil, false
	}

	cp := *s.last
	cp.Sources = append([]models.SourceSummary(nil), s.last.Sources...)

	return &cp, true
}

// runPlan — проверенные параметры прогона.
type runPlan struct {
	sources   []models.SourceConfig
	geos      []*filter.Geo
	window    time.Duration
	targetNew int
}

func (s *Service) plan(sources []models.SourceConfig, window time.Duration, targetNew int) (runPlan, error) {
	if window <= 0 || targetNew <= 0 {
		return runPlan{}, fmt.Errorf("window and target must be positive: %w", ErrInvalidArgument)
	}

	geos := make([]*filter.Geo, len(sources))
	for i, src := range sources {
		g, err := filter.NewGeo(s.cfg.GeoKeywordsFor(src))
		if err != nil {
			return runPlan{}, fmt.Errorf("source %q: %w: %w", src.Name, ErrInvalidArgument, err)
		}
		geos[i] = g
	}

	return runPlan{sources: sources, geos: geos, window: window, targetNew: targetNew}, nil
}

func (s *Service) execute(ctx context.Context, p runPlan) *models.RunSummary {
	const op = "service.orchestrator.execute"

	ctx = log.WithRun(ctx, uuid.NewString())
	lg := log.From(ctx)

	started := s.now()
	summary := &models.RunSummary{StartedAt: started, TargetNew: p.targetNew}

	lg.Info("run_started",
		slog.String("op", op),
		slog.Int("sources", len(p.sources)),
		slog.Duration("window", p.window),
		slog.Int("target_new", p.targetNew),
	)

	recency := filter.NewRecency(p.window, started)
	q := newQuota(p.targetNew)

	workers := s.cfg.Pipeline.SourceWorkers
	if workers <= 0 {
		workers = 1
	}

	results := make([]*models.SourceSummary, len(p.sources))
	slots := semaphore.NewWeighted(int64(workers))
	var g errgroup.Group

	for i, src := range p.sources {
		if err := slots.Acquire(ctx, 1); err != nil {
			break
		}

		if q.reached() {
			slots.Release(1)
			break
		}

		if i > 0 {
			if err := sleep(ctx, s.cfg.Pipeline.FetchDelay); err != nil {
				slots.Release(1)
				break
			}
		}

		g.Go(func() error {
			defer slots.Release(1)

			res := s.runSource(ctx, src, p.geos[i], recency, q)
			results[i] = &res

			return nil
		})
	}

	_ = g.Wait()

	for _, res := range results {
		if res == nil {
			continue
		}
		summary.Sources = append(summary.Sources, *res)
		summary.Total.Add(res.Counters)
	}

	summary.TargetReached = q.reached()
	summary.FinishedAt = s.now()

	result := metrics.ResultOK
	if ctx.Err() != nil {
		result = metrics.ResultFailed
	}
	s.metrics.Run(result, summary.FinishedAt.Sub(summary.StartedAt))

	s.lastMu.Lock()
	s.last = summary
	s.lastMu.Unlock()

	lg.Info("run_finished",
		slog.String("op", op),
		slog.Int("sources_visited", len(summary.Sources)),
		slog.Int("seen", summary.Total.Seen),
		slog.Int("passed", summary.Total.Passed),
		slog.Int("created", summary.Total.Created),
		slog.Int("duplicates", summary.Total.Duplicates),
		slog.Int("errors", summary.Total.Errors),
		slog.Bool("target_reached", summary.TargetReached),
	)

	return summary
}

// runSource обрабатывает один источник до конца ленты или до достижения лимита.
func (s *Service) runSource(ctx context.Context, src models.SourceConfig, geo *filter.Geo, recency filter.Recency, q *quota) models.SourceSummary {
	const op = "service.orchestrator.runSource"

	ctx = log.WithSource(ctx, src.Name)
	lg := log.From(ctx)

	res := models.SourceSummary{Name: src.Name, URL: src.URL}

	fetchCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Fetch)
	raw, err := s.fetcher.Fetch(fetchCtx, src.URL)
	cancel()
	if err != nil {
		res.FetchError = err.Error()
		res.Errors++
		s.metrics.FetchError(src.Name)

		lg.Warn("fetch_error",
			slog.String("op", op),
			slog.String("url", src.URL),
			slog.String("err", err.Error()),
		)

		return res
	}

	for item := range feed.Parse(raw) {
		if q.reached() || ctx.Err() != nil {
			break
		}

		res.Seen++
		s.metrics.Item(src.Name, metrics.OutcomeSeen)

		if !geo.Match(item) || !recency.Match(item) {
			continue
		}

		res.Passed++
		s.metrics.Item(src.Name, metrics.OutcomePassed)

		outcome, stop := s.processItem(ctx, src, item, q)
		switch outcome {
		case metrics.OutcomeCreated:
			res.Created++
		case metrics.OutcomeDuplicate:
			res.Duplicates++
		case metrics.OutcomeError:
			res.Errors++
		}
		if outcome != "" {
			s.metrics.Item(src.Name, outcome)
		}

		if stop {
			break
		}
	}

	lg.Info("source_finished",
		slog.String("op", op),
		slog.Int("seen", res.Seen),
		slog.Int("passed", res.Passed),
		slog.Int("created", res.Created),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("errors", res.Errors),
	)

	return res
}

// processItem проводит прошедший фильтры элемент через Dedup Gate,
// обогащение и вставку. stop == true — лимит прогона исчерпан, и элемент
// не обрабатывался.
func (s *Service) processItem(ctx context.Context, src models.SourceConfig, item models.FeedItem, q *quota) (outcome string, stop bool) {
	const op = "service.orchestrator.processItem"

	lg := log.From(ctx)

	exists, err := s.Exists(ctx, item.Link)
	if err != nil {
		return metrics.OutcomeError, false
	}
	if exists {
		return metrics.OutcomeDuplicate, false
	}

	if !q.reserve() {
		return "", true
	}

	enr := s.enricher.Enrich(ctx, item, src)
	rec := lifecycle.NewRecord(item, src, enr, s.now())

	storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	err = s.records.InsertRecord(storeCtx, &rec)
	cancel()

	if err != nil {
		q.release()

		if errors.Is(err, storage.ErrAlreadyExists) {
			s.remember(ctx, item.Link)
			return metrics.OutcomeDuplicate, false
		}

		lg.Warn("record_insert_failed",
			slog.String("op", op),
			slog.String("link", item.Link),
			slog.String("err", err.Error()),
		)

		return metrics.OutcomeError, false
	}

	q.commit()
	s.remember(ctx, item.Link)

	lg.Info("record_created",
		slog.String("op", op),
		slog.String("id", rec.ID.String()),
		slog.String("link", rec.SourceLink),
		slog.String("category", rec.Category),
		slog.Bool("insight_fallback", rec.InsightFallback),
	)

	return metrics.OutcomeCreated, false
}
