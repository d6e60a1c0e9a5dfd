// lifecycle — конечный автомат модерации ContentRecord.
//
// Состояния: queued (начальное), published, rejected (терминальное).
// Каждое действие определено только на своём множестве исходных состояний;
// вызов из другого состояния завершается ErrInvalidTransition, а исходная
// запись не изменяется.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

var (
	// ErrPreconditionFailed — публикация без медиа-вложения.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvalidTransition — действие не определено для текущего состояния.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidArgument — у действия нет обязательного аргумента.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Action — действие модератора.
type Action string

const (
	ActionAttachMedia Action = "attach_media"
	ActionPublish     Action = "publish"
	ActionReject      Action = "reject"
	ActionUnpublish   Action = "unpublish"
	ActionEditInsight Action = "edit_insight"
	ActionReclassify  Action = "reclassify"
)

// allowed — допустимые исходные состояния для каждого действия.
var allowed = map[Action][]models.Status{
	ActionAttachMedia: {models.StatusQueued},
	ActionPublish:     {models.StatusQueued},
	ActionReject:      {models.StatusQueued},
	ActionUnpublish:   {models.StatusPublished},
	ActionEditInsight: {models.StatusQueued, models.StatusPublished},
	ActionReclassify:  {models.StatusQueued, models.StatusPublished},
}

// Transition — запрос на применение действия.
type Transition struct {
	Action Action
	// MediaRef — для attach_media.
	MediaRef string
	// InsightText — для edit_insight.
	InsightText string
	// Enrichment — результат повторной классификации для reclassify.
	Enrichment models.Enrichment
}

// Allowed сообщает, определено ли действие для состояния.
func Allowed(action Action, from models.Status) bool {
	for _, s := range allowed[action] {
		if s == from {
			return true
		}
	}

	return false
}

// NewRecord создаёт запись в состоянии queued из элемента ленты и результата обогащения.
func NewRecord(item models.FeedItem, src models.SourceConfig, e models.Enrichment, now time.Time) models.ContentRecord {
	now = now.UTC()

	return models.ContentRecord{
		ID:              uuid.New(),
		SourceLink:      item.Link,
		SourceName:      src.Name,
		Title:           item.Title,
		Excerpt:         item.Excerpt,
		PublishedAt:     item.PublishedAt.UTC(),
		InsightText:     e.InsightText,
		InsightFallback: e.InsightFallback,
		Category:        e.Category,
		LocationLabel:   e.LocationLabel,
		Tags:            append([]string(nil), e.Tags...),
		Status:          models.StatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Apply применяет переход и возвращает новую версию записи.
// При ошибке возвращается исходная запись без изменений.
func Apply(rec models.ContentRecord, tr Transition, now time.Time) (models.ContentRecord, error) {
	const op = "lifecycle.Apply"

	if _, ok := allowed[tr.Action]; !ok {
		return rec, fmt.Errorf("%s: unknown action %q: %w", op, tr.Action, ErrInvalidTransition)
	}

	if !Allowed(tr.Action, rec.Status) {
		return rec, fmt.Errorf("%s: %s from %s: %w", op, tr.Action, rec.Status, ErrInvalidTransition)
	}

	now = now.UTC()
	next := rec
	next.Tags = append([]string(nil), rec.Tags...)

	switch tr.Action {
	case ActionAttachMedia:
		ref := strings.TrimSpace(tr.MediaRef)
		if ref == "" {
			return rec, fmt.Errorf("%s: media ref is empty: %w", op, ErrInvalidArgument)
		}
		next.MediaRef = ref

	case ActionPublish:
		if strings.TrimSpace(rec.MediaRef) == "" {
			return rec, fmt.Errorf("%s: publish without media: %w", op, ErrPreconditionFailed)
		}
		next.Status = models.StatusPublished
		next.LiveAt = &now

	case ActionReject:
		next.Status = models.StatusRejected

	case ActionUnpublish:
		// Вложение остаётся: повторная публикация не требует новой загрузки.
		next.Status = models.StatusQueued
		next.LiveAt = nil

	case ActionEditInsight:
		text := strings.TrimSpace(tr.InsightText)
		if text == "" {
			return rec, fmt.Errorf("%s: insight text is empty: %w", op, ErrInvalidArgument)
		}
		next.InsightText = text
		next.InsightFallback = false

	case ActionReclassify:
		next.Category = tr.Enrichment.Category
		next.LocationLabel = tr.Enrichment.LocationLabel
		next.Tags = append([]string(nil), tr.Enrichment.Tags...)
	}

	next.UpdatedAt = now

	return next, nil
}
