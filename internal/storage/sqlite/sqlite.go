// sqlite — встраиваемое хранилище записей на modernc.org/sqlite.
// Используется в окружении local и в тестах вместо PostgreSQL.
// Время хранится в UnixNano (INTEGER), теги — JSON-массивом.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_records (
    id               TEXT    PRIMARY KEY,
    source_link      TEXT    NOT NULL UNIQUE,
    source_name      TEXT    NOT NULL DEFAULT '',
    title            TEXT    NOT NULL,
    excerpt          TEXT    NOT NULL DEFAULT '',
    published_at     INTEGER NOT NULL,
    insight_text     TEXT    NOT NULL DEFAULT '',
    insight_fallback INTEGER NOT NULL DEFAULT 0,
    category         TEXT    NOT NULL DEFAULT '',
    location_label   TEXT    NOT NULL DEFAULT '',
    tags             TEXT    NOT NULL DEFAULT '[]',
    media_ref        TEXT    NOT NULL DEFAULT '',
    status           TEXT    NOT NULL CHECK (status IN ('queued', 'published', 'rejected')),
    live_at          INTEGER NULL,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL,
    version          INTEGER NOT NULL DEFAULT 0,
    CHECK (status <> 'published' OR media_ref <> '')
);
CREATE INDEX IF NOT EXISTS content_records_status_created_idx
    ON content_records (status, created_at DESC, id DESC);
`

type Storage struct {
	db *sql.DB
}

// New открывает (или создаёт) базу и применяет схему.
// path — путь к файлу или готовый DSN с префиксом "file:".
func New(ctx context.Context, path string) (*Storage, error) {
	const op = "storage.sqlite.New"

	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: schema: %w", op, err)
	}

	if err := addVersionColumn(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: schema: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// addVersionColumn догоняет файлы, созданные до появления колонки version.
func addVersionColumn(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('content_records') WHERE name = 'version'`,
	).Scan(&n)
	if err != nil || n > 0 {
		return err
	}

	_, err = db.ExecContext(ctx, `ALTER TABLE content_records ADD COLUMN version INTEGER NOT NULL DEFAULT 0`)

	return err
}

// Close закрывает базу.
func (s *Storage) Close() {
	_ = s.db.Close()
}

var _ storage.Storage = (*Storage)(nil)
