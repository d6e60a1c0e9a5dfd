package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

var recordColumns = []string{
	"id", "source_link", "source_name", "title", "excerpt", "published_at",
	"insight_text", "insight_fallback", "category", "location_label", "tags",
	"media_ref", "status", "live_at", "created_at", "updated_at", "version",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// InsertRecord сохраняет одну запись отдельной командой.
// Нарушение уникальности source_link — storage.ErrAlreadyExists.
func (s *Storage) InsertRecord(ctx context.Context, rec *models.ContentRecord) error {
	const op = "storage.postgres.InsertRecord"

	query, args, err := psql.Insert("content_records").
		Columns(recordColumns...).
		Values(
			rec.ID, rec.SourceLink, rec.SourceName, rec.Title, rec.Excerpt, rec.PublishedAt.UTC(),
			rec.InsightText, rec.InsightFallback, rec.Category, rec.LocationLabel, tagsOrEmpty(rec.Tags),
			rec.MediaRef, string(rec.Status), rec.LiveAt, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), rec.Version,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: build: %w", op, err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ExistsBySourceLink — точечная проверка по уникальному индексу.
func (s *Storage) ExistsBySourceLink(ctx context.Context, link string) (bool, error) {
	const op = "storage.postgres.ExistsBySourceLink"

	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM content_records WHERE source_link = $1)
	`, link).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// RecordByID возвращает запись по идентификатору.
func (s *Storage) RecordByID(ctx context.Context, id uuid.UUID) (*models.ContentRecord, error) {
	const op = "storage.postgres.RecordByID"

	query, args, err := psql.Select(recordColumns...).
		From("content_records").
		Where(sq.Expr("id = ?", id)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build: %w", op, err)
	}

	rec, err := scanRecord(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// ListByStatus возвращает страницу записей с курсорной пагинацией.
// Сортировка фиксирована: created_at DESC, id DESC.
func (s *Storage) ListByStatus(ctx context.Context, status models.Status, opts models.ListOptions) (*models.Page, error) {
	const op = "storage.postgres.ListByStatus"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	qb := psql.Select(recordColumns...).
		From("content_records").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	if opts.PageToken != "" {
		createdCur, idCur, err := storage.DecodePageToken(opts.PageToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidCursor)
		}
		qb = qb.Where(sq.Expr("(created_at, id) < (?, ?)", createdCur, idCur))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build: %w", op, err)
	}

	rows, err := s.db.Query(ctx, query, args...)
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

	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, rows.Err())
	}

	page.NextPageToken = storage.NextPageToken(page.Items, limit)

	return &page, nil
}

// UpdateRecord перезаписывает изменяемые поля при совпадении статуса и версии.
func (s *Storage) UpdateRecord(ctx context.Context, rec *models.ContentRecord, expected models.Status) error {
	const op = "storage.postgres.UpdateRecord"

	tag, err := s.db.Exec(ctx, `
		UPDATE content_records
		SET insight_text = $3,
			insight_fallback = $4,
			category = $5,
			location_label = $6,
			tags = $7,
			media_ref = $8,
			status = $9,
			live_at = $10,
			updated_at = $11,
			version = version + 1
		WHERE id = $1 AND status = $2 AND version = $12
	`, rec.ID, string(expected),
		rec.InsightText, rec.InsightFallback, rec.Category, rec.LocationLabel, tagsOrEmpty(rec.Tags),
		rec.MediaRef, string(rec.Status), rec.LiveAt, rec.UpdatedAt.UTC(), rec.Version,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		rec.Version++
		return nil
	}

	var (
		current string
		version int64
	)
	err = s.db.QueryRow(ctx, `SELECT status, version FROM content_records WHERE id = $1`, rec.ID).Scan(&current, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: expected %s@%d, got %s@%d: %w", op, expected, rec.Version, current, version, storage.ErrStaleRecord)
}

func scanRecord(row pgx.Row) (*models.ContentRecord, error) {
	var (
		rec    models.ContentRecord
		status string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.SourceLink,
		&rec.SourceName,
		&rec.Title,
		&rec.Excerpt,
		&rec.PublishedAt,
		&rec.InsightText,
		&rec.InsightFallback,
		&rec.Category,
		&rec.LocationLabel,
		&rec.Tags,
		&rec.MediaRef,
		&status,
		&rec.LiveAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.Version,
	); err != nil {
		return nil, err
	}

	// Нормализация в UTC.
	rec.Status = models.Status(status)
	rec.PublishedAt = rec.PublishedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.LiveAt != nil {
		t := rec.LiveAt.UTC()
		rec.LiveAt = &t
	}

	return &rec, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}

	return tags
}
