package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/cache"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/config"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/enrich"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/feed"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/llm"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/metrics"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/service"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage/minio"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage/mongo"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage/postgres"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage/sqlite"
)

const connectTimeout = 10 * time.Second

// app — собранные зависимости процесса.
type app struct {
	store storage.Storage
	seen  cache.SeenCache
	svc   *service.Service
}

// Close останавливает фоновые прогоны и закрывает подключения.
func (a *app) Close() {
	if a.svc != nil {
		a.svc.Close()
	}

	if a.seen != nil {
		_ = a.seen.Close()
	}

	if a.store != nil {
		a.store.Close()
	}
}

// build подключает хранилища и собирает сервис.
// Redis, MinIO и LLM необязательны: пустая конфигурация их отключает.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer, autoMigrate bool) (*app, error) {
	a := &app{}

	store, err := openStore(ctx, cfg, log, autoMigrate)
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.Cache.RedisURL != "" {
		seen, err := cache.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.seen = seen
		log.Info("redis_connected")
	}

	var media storage.MediaStorage
	if cfg.S3.Endpoint != "" {
		mctx, cancel := context.WithTimeout(ctx, connectTimeout)
		ms, err := minio.New(mctx, cfg.S3, cfg.Media)
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		media = ms
		log.Info("minio_connected", slog.String("bucket", cfg.S3.Bucket))
	}

	rules := enrich.DefaultRules()
	if cfg.Pipeline.RulesPath != "" {
		rules, err = enrich.LoadRules(cfg.Pipeline.RulesPath)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var gen enrich.Generator
	if cfg.LLM.Enabled() {
		gen = llm.New(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		})
		log.Info("llm_enabled", slog.String("model", cfg.LLM.Model))
	} else {
		log.Warn("llm_disabled", slog.String("reason", "no llm.base_url or llm.api_key; insights use excerpts"))
	}

	m := metrics.New(reg)

	engine, err := enrich.New(rules, gen, enrich.Options{
		MaxConcurrent: cfg.LLM.MaxConcurrent,
		Delay:         cfg.LLM.Delay,
		Timeout:       cfg.Timeouts.Generation,
		OnResult:      func(r enrich.Result) { m.Generation(r.Fallback) },
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := feed.NewFetcher(&http.Client{Timeout: cfg.Timeouts.Fetch}, feed.FetcherOptions{
		UserAgent:     cfg.Pipeline.UserAgent,
		MaxBytes:      cfg.Pipeline.MaxFeedBytes,
		RespectRobots: cfg.Pipeline.RespectRobots,
	})

	deps := service.Deps{
		Records:  store,
		Media:    media,
		Seen:     a.seen,
		Fetcher:  fetcher,
		Enricher: engine,
		Metrics:  m,
	}
	a.svc = service.New(deps, *cfg)
	log.Info("service_initialized", slog.Int("sources", len(cfg.AllSources())))

	return a, nil
}

// openStore открывает хранилище записей выбранного драйвера.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger, autoMigrate bool) (storage.Storage, error) {
	dbCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.DB.Driver {
	case config.DriverPostgres:
		pg, err := postgres.New(dbCtx, cfg.DB.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		if autoMigrate {
			if err := pg.Migrate(dbCtx); err != nil {
				pg.Close()
				return nil, fmt.Errorf("postgres: %w", err)
			}
		}

		log.Info("postgres_connected", slog.Bool("migrated", autoMigrate))

		return pg, nil

	case config.DriverMongo:
		mg, err := mongo.New(dbCtx, cfg.DB.URL)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		log.Info("mongo_connected")

		return mg, nil

	case config.DriverSQLite:
		sl, err := sqlite.New(dbCtx, cfg.DB.URL)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("sqlite_opened", slog.String("path", cfg.DB.URL))

		return sl, nil

	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}

// migrate готовит схему. Для mongo и sqlite схема создаётся при подключении.
func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := openStore(ctx, cfg, log, true)
	if err != nil {
		log.Error("migrate_failed", slog.String("err", err.Error()))
		return err
	}
	store.Close()

	log.Info("migrate_done", slog.String("driver", cfg.DB.Driver))

	return nil
}

// runOnce выполняет один прогон по сконфигурированным источникам.
func runOnce(ctx context.Context, cfg *config.Config, log *slog.Logger) (*models.RunSummary, error) {
	a, err := build(ctx, cfg, log, prometheus.NewRegistry(), true)
	if err != nil {
		log.Error("startup_failed", slog.String("err", err.Error()))
		return nil, err
	}
	defer a.Close()

	return a.svc.RunConfigured(ctx)
}
