package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// Exists — Dedup Gate: есть ли уже запись с такой канонической ссылкой.
//
// Особенности:
//   - сначала спрашивается кэш виденных ссылок; попадание — окончательный ответ;
//   - промах или сбой кэша ведут к точечной проверке в хранилище;
//   - сбой хранилища даёт (true, err): элемент пропускается как существующий,
//     вызывающий учитывает ошибку.
func (s *Service) Exists(ctx context.Context, link string) (bool, error) {
	const op = "service.dedup.Exists"

	lg := log.From(ctx)

	if s.seen != nil {
		hit, err := s.seen.Seen(ctx, link)
		if err != nil {
			lg.Warn("seen_cache_error",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if hit {
			return true, nil
		}
	}

	storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	exists, err := s.records.ExistsBySourceLink(storeCtx, link)
	if err != nil {
		lg.Warn("dedup_check_failed",
			slog.String("op", op),
			slog.String("link", link),
			slog.String("err", err.Error()),
		)

		return true, fmt.Errorf("%s: %w", op, err)
	}

	if exists {
		s.remember(ctx, link)
	}

	return exists, nil
}

// remember помечает ссылку в кэше; сбои только логируются.
func (s *Service) remember(ctx context.Context, link string) {
	if s.seen == nil {
		return
	}

	if err := s.seen.Remember(ctx, link); err != nil {
		log.From(ctx).Warn("seen_cache_error",
			slog.String("op", "service.dedup.remember"),
			slog.String("err", err.Error()),
		)
	}
}
