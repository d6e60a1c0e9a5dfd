package storage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// EncodePageToken кодирует пару ключей страницы (created_at, id)
// в непрозрачный токен для клиента.
func EncodePageToken(createdAt time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d|%s", createdAt.UTC().UnixNano(), id.String())

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodePageToken декодирует токен обратно в пару ключей.
func DecodePageToken(token string) (time.Time, uuid.UUID, error) {
	res, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}

	parts := strings.SplitN(string(res), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("bad parts")
	}

	t, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}

	return time.Unix(0, t).UTC(), id, nil
}

// NextPageToken возвращает токен по последнему элементу полной страницы.
// Неполная страница означает конец выборки.
func NextPageToken(items []models.ContentRecord, limit int32) string {
	if len(items) == 0 || int32(len(items)) < limit {
		return ""
	}

	last := items[len(items)-1]

	return EncodePageToken(last.CreatedAt, last.ID)
}
