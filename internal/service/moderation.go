package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/lifecycle"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// Ошибки автомата модерации пробрасываются без изменений.
var (
	// Транспорт: codes.FailedPrecondition.
	ErrPreconditionFailed = lifecycle.ErrPreconditionFailed
	// Транспорт: codes.FailedPrecondition (invalid_transition).
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
)

// maxCASAttempts — сколько раз повторяется переход при конкурентном изменении записи.
const maxCASAttempts = 3

// RecordByID возвращает запись по идентификатору.
//
// Ошибки:
//   - ErrInvalidArgument — id не UUID;
//   - ErrNotFound — записи нет.
func (s *Service) RecordByID(ctx context.Context, id string) (*models.ContentRecord, error) {
	const op = "service.moderation.RecordByID"

	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, ErrInvalidArgument)
	}

	rec, err := s.recordByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// ListByStatus возвращает страницу записей в статусе с нормализацией лимита.
//
// Правила нормализации:
// - limit <= 0 -> cfg.Limits.Default;
// - limit > max -> cfg.Limits.Max;
// - пустой pageToken -> первая страница.
func (s *Service) ListByStatus(ctx context.Context, status string, opts models.ListOptions) (*models.Page, error) {
	const op = "service.moderation.ListByStatus"

	st, ok := models.ParseStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidArgument)
	}

	if opts.Limit <= 0 {
		opts.Limit = s.cfg.Limits.Default
	}
	if s.cfg.Limits.Max > 0 && opts.Limit > s.cfg.Limits.Max {
		opts.Limit = s.cfg.Limits.Max
	}

	storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	page, err := s.records.ListByStatus(storeCtx, st, opts)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			log.From(ctx).Warn("list_records_invalid_cursor", slog.String("op", op))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCursor)
		}

		log.From(ctx).Error("list_records_storage_error",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// MediaUploadURL выдаёт presigned PUT для иллюстрации записи в статусе queued.
//
// Ошибки:
//   - ErrMediaUnavailable — хранилище медиа не сконфигурировано;
//   - ErrInvalidArgument — неподходящий тип/размер или битый id;
//   - ErrNotFound — записи нет;
//   - ErrInvalidTransition — запись не в очереди модерации.
func (s *Service) MediaUploadURL(ctx context.Context, id, contentType string, contentLength int64) (*storage.UploadInfo, error) {
	const op = "service.moderation.MediaUploadURL"

	if s.media == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMediaUnavailable)
	}

	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, ErrInvalidArgument)
	}

	rec, err := s.recordByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !lifecycle.Allowed(lifecycle.ActionAttachMedia, rec.Status) {
		return nil, fmt.Errorf("%s: record is %s: %w", op, rec.Status, ErrInvalidTransition)
	}

	info, err := s.media.MediaUploadURL(ctx, uid, contentType, contentLength)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidArgument) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidArgument, err)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return info, nil
}

// AttachMedia прикрепляет иллюстрацию к записи в очереди.
// ref — абсолютная http(s)-ссылка либо ключ, загруженный через MediaUploadURL;
// ключ проверяется в хранилище медиа и превращается в публичную ссылку.
func (s *Service) AttachMedia(ctx context.Context, id, ref string) (*models.ContentRecord, error) {
	const op = "service.moderation.AttachMedia"

	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, ErrInvalidArgument)
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%s: empty media ref: %w", op, ErrInvalidArgument)
	}

	if !isAbsoluteURL(ref) {
		resolved, err := s.confirmUpload(ctx, uid, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ref = resolved
	}

	return s.transition(ctx, op, uid, func(models.ContentRecord) lifecycle.Transition {
		return lifecycle.Transition{Action: lifecycle.ActionAttachMedia, MediaRef: ref}
	})
}

// Publish переводит запись queued → published. Без медиа — ErrPreconditionFailed.
func (s *Service) Publish(ctx context.Context, id string) (*models.ContentRecord, error) {
	return s.simple(ctx, "service.moderation.Publish", id, lifecycle.ActionPublish)
}

// Reject переводит запись queued → rejected.
func (s *Service) Reject(ctx context.Context, id string) (*models.ContentRecord, error) {
	return s.simple(ctx, "service.moderation.Reject", id, lifecycle.ActionReject)
}

// Unpublish возвращает запись published → queued; медиа остаётся.
func (s *Service) Unpublish(ctx context.Context, id string) (*models.ContentRecord, error) {
	return s.simple(ctx, "service.moderation.Unpublish", id, lifecycle.ActionUnpublish)
}

// EditInsight заменяет текст комментария (queued или published).
func (s *Service) EditInsight(ctx context.Context, id, text string) (*models.ContentRecord, error) {
	const op = "service.moderation.EditInsight"

	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, ErrInvalidArgument)
	}

	return s.transition(ctx, op, uid, func(models.ContentRecord) lifecycle.Transition {
		return lifecycle.Transition{Action: lifecycle.ActionEditInsight, InsightText: text}
	})
}

// Reclassify заново прогоняет чистые классификаторы по сохранённым
// заголовку и тизеру. Подсказка категории берётся у источника записи.
func (s *Service) Reclassify(ctx context.Context, id string) (*models.ContentRecord, error) {
	const op = "service.moderation.Reclassify"

	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, ErrInvalidArgument)
	}

	return s.transition(ctx, op, uid, func(rec models.ContentRecord) lifecycle.Transition {
		cls := s.enricher.Classify(
			models.FeedItem{Title: rec.Title, Link: rec.SourceLink, Excerpt: rec.Excerpt},
			s.categoryHint(rec.SourceName),
		)

		return lifecycle.Transition{
			Action: lifecycle.ActionReclassify,
			Enrichment: models.Enrichment{
				Category:      cls.Category,
				LocationLabel: cls.LocationLabel,
				Tags:          cls.Tags,
			},
		}
	})
}

func (s *Service) simple(ctx context.Context, op, id string, action lifecycle.Action) (*models.ContentRecord, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, ErrInvalidArgument)
	}

	return s.transition(ctx, op, uid, func(models.ContentRecord) lifecycle.Transition {
		return lifecycle.Transition{Action: action}
	})
}

// transition — чтение → lifecycle.Apply → compare-and-swap по статусу и версии.
// Конкурентное изменение записи повторяется до maxCASAttempts раз поверх
// свежего снимка с новой проверкой перехода; после этого — ErrConflict.
func (s *Service) transition(ctx context.Context, op string, id uuid.UUID, build func(models.ContentRecord) lifecycle.Transition) (*models.ContentRecord, error) {
	lg := log.From(ctx)

	var action lifecycle.Action
	fail := func(err error) (*models.ContentRecord, error) {
		s.metrics.Transition(string(action), err)
		lg.Warn("moderation_transition_failed",
			slog.String("op", op),
			slog.String("id", id.String()),
			slog.String("action", string(action)),
			slog.String("err", err.Error()),
		)

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		rec, err := s.recordByID(ctx, id)
		if err != nil {
			return fail(err)
		}

		tr := build(*rec)
		action = tr.Action

		next, err := lifecycle.Apply(*rec, tr, s.now())
		if err != nil {
			if errors.Is(err, lifecycle.ErrInvalidArgument) {
				return fail(fmt.Errorf("%w: %w", ErrInvalidArgument, err))
			}

			return fail(err)
		}

		storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
		err = s.records.UpdateRecord(storeCtx, &next, rec.Status)
		cancel()

		switch {
		case err == nil:
			s.metrics.Transition(string(action), nil)
			lg.Info("moderation_transition",
				slog.String("op", op),
				slog.String("id", id.String()),
				slog.String("action", string(action)),
				slog.String("from", string(rec.Status)),
				slog.String("to", string(next.Status)),
			)

			return &next, nil

		case errors.Is(err, storage.ErrStaleRecord):
			lg.Debug("moderation_transition_retry",
				slog.String("op", op),
				slog.String("id", id.String()),
				slog.Int("attempt", attempt),
			)
			continue

		case errors.Is(err, storage.ErrNotFound):
			return fail(ErrNotFound)

		default:
			return fail(err)
		}
	}

	return fail(ErrConflict)
}

func (s *Service) recordByID(ctx context.Context, id uuid.UUID) (*models.ContentRecord, error) {
	storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	rec, err := s.records.RecordByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return rec, nil
}

// confirmUpload проверяет ключ из presigned-загрузки и возвращает ссылку на объект.
func (s *Service) confirmUpload(ctx context.Context, id uuid.UUID, key string) (string, error) {
	if s.media == nil {
		return "", ErrMediaUnavailable
	}

	ref, err := s.media.ConfirmMediaUpload(ctx, id, key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidArgument):
			return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		case errors.Is(err, storage.ErrNotFoundMedia):
			return "", fmt.Errorf("%w: %w", ErrMediaNotFound, err)
		default:
			return "", err
		}
	}

	return ref, nil
}

func (s *Service) categoryHint(sourceName string) string {
	for _, src := range s.cfg.AllSources() {
		if src.Name == sourceName {
			return src.CategoryHint
		}
	}

	return ""
}

func isAbsoluteURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
