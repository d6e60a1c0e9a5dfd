package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// StartIngest запускает периодические прогоны по источникам из конфига.
//
// Особенности:
//   - первый прогон стартует сразу, далее - каждые pipeline.interval;
//   - прогон, пересёкшийся с ручным запуском (ErrRunInProgress), пропускается;
//   - останавливается по ctx.
func (s *Service) StartIngest(ctx context.Context) error {
	const op = "service.ingest.StartIngest"

	sources := s.cfg.AllSources()
	interval := s.cfg.Pipeline.Interval

	if len(sources) == 0 {
		return fmt.Errorf("%s: no sources configured", op)
	}
	if interval <= 0 {
		return fmt.Errorf("%s: interval must be positive: %w", op, ErrInvalidArgument)
	}

	lg := log.From(ctx)
	lg.Info("ingest_start",
		slog.String("op", op),
		slog.Int("sources", len(sources)),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.ingestTick(ctx)

	for {
		select {
		case <-ctx.Done():
			lg.Info("ingest_stop", slog.String("op", op))
			return nil
		case <-ticker.C:
			s.ingestTick(ctx)
		}
	}
}

// RunConfigured — один прогон с параметрами pipeline из конфига.
func (s *Service) RunConfigured(ctx context.Context) (*models.RunSummary, error) {
	const op = "service.ingest.RunConfigured"

	summary, err := s.RunBatch(ctx, s.cfg.AllSources(), s.cfg.Pipeline.Window, s.cfg.Pipeline.TargetNew)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return summary, nil
}

func (s *Service) ingestTick(ctx context.Context) {
	const op = "service.ingest.ingestTick"

	if _, err := s.RunConfigured(ctx); err != nil {
		lg := log.From(ctx)
		if errors.Is(err, ErrRunInProgress) {
			lg.Info("ingest_tick_skipped", slog.String("op", op))
			return
		}

		lg.Warn("ingest_tick_error",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}
