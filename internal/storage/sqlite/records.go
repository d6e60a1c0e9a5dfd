package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

var recordColumns = []string{
	"id", "source_link", "source_name", "title", "excerpt", "published_at",
	"insight_text", "insight_fallback", "category", "location_label", "tags",
	"media_ref", "status", "live_at", "created_at", "updated_at", "version",
}

// InsertRecord сохраняет запись; конфликт по source_link — storage.ErrAlreadyExists.
func (s *Storage) InsertRecord(ctx context.Context, rec *models.ContentRecord) error {
	const op = "storage.sqlite.InsertRecord"

	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := sq.Insert("content_records").
		Columns(recordColumns...).
		Values(
			rec.ID.String(), rec.SourceLink, rec.SourceName, rec.Title, rec.Excerpt, toNanos(rec.PublishedAt),
			rec.InsightText, rec.InsightFallback, rec.Category, rec.LocationLabel, tags,
			rec.MediaRef, string(rec.Status), toNullNanos(rec.LiveAt), toNanos(rec.CreatedAt), toNanos(rec.UpdatedAt), rec.Version,
		).
		Suffix("ON CONFLICT (source_link) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: build: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	return nil
}

func (s *Storage) ExistsBySourceLink(ctx context.Context, link string) (bool, error) {
	const op = "storage.sqlite.ExistsBySourceLink"

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_records WHERE source_link = ?)`, link,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (s *Storage) RecordByID(ctx context.Context, id uuid.UUID) (*models.ContentRecord, error) {
	const op = "storage.sqlite.RecordByID"

	query, args, err := sq.Select(recordColumns...).
		From("content_records").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build: %w", op, err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// ListByStatus — keyset-пагинация по (created_at DESC, id DESC).
func (s *Storage) ListByStatus(ctx context.Context, status models.Status, opts models.ListOptions) (*models.Page, error) {
	const op = "storage.sqlite.ListByStatus"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	qb := sq.Select(recordColumns...).
		From("content_records").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	if opts.PageToken != "" {
		createdCur, idCur, err := storage.DecodePageToken(opts.PageToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidCursor)
		}
		c := toNanos(createdCur)
		qb = qb.Where(sq.Or{
			sq.Lt{"created_at": c},
			sq.And{sq.Eq{"created_at": c}, sq.Lt{"id": idCur.String()}},
		})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var page models.Page
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, scanErr)
		}
		page.Items = append(page.Items, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	page.NextPageToken = storage.NextPageToken(page.Items, limit)

	return &page, nil
}

// UpdateRecord — compare-and-swap по статусу и версии.
func (s *Storage) UpdateRecord(ctx context.Context, rec *models.ContentRecord, expected models.Status) error {
	const op = "storage.sqlite.UpdateRecord"

	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := sq.Update("content_records").
		SetMap(map[string]any{
			"insight_text":     rec.InsightText,
			"insight_fallback": rec.InsightFallback,
			"category":         rec.Category,
			"location_label":   rec.LocationLabel,
			"tags":             tags,
			"media_ref":        rec.MediaRef,
			"status":           string(rec.Status),
			"live_at":          toNullNanos(rec.LiveAt),
			"updated_at":       toNanos(rec.UpdatedAt),
			"version":          sq.Expr("version + 1"),
		}).
		Where(sq.Eq{"id": rec.ID.String(), "status": string(expected), "version": rec.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: build: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 1 {
		rec.Version++
		return nil
	}

	var (
		current string
		version int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT status, version FROM content_records WHERE id = ?`, rec.ID.String(),
	).Scan(&current, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: expected %s@%d, got %s@%d: %w", op, expected, rec.Version, current, version, storage.ErrStaleRecord)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ContentRecord, error) {
	var (
		rec                         models.ContentRecord
		id, tags, status            string
		published, created, updated int64
		live                        sql.NullInt64
	)

	if err := row.Scan(
		&id,
		&rec.SourceLink,
		&rec.SourceName,
		&rec.Title,
		&rec.Excerpt,
		&published,
		&rec.InsightText,
		&rec.InsightFallback,
		&rec.Category,
		&rec.LocationLabel,
		&tags,
		&rec.MediaRef,
		&status,
		&live,
		&created,
		&updated,
		&rec.Version,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad id %q: %w", id, err)
	}
	rec.ID = parsed

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("bad tags: %w", err)
	}

	rec.Status = models.Status(status)
	rec.PublishedAt = fromNanos(published)
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	if live.Valid {
		t := fromNanos(live.Int64)
		rec.LiveAt = &t
	}

	return &rec, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// toNanos хранит нулевое время как 0, чтобы не переполнять int64.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UTC().UnixNano()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}
