// storage определяет контракты доступа к хранилищам ingest-service.
package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

var (
	// ErrNotFound — сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — запись с таким source_link уже сохранена.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidCursor - битый/чужой page_token (курсор пагинации).
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrStaleRecord — запись изменилась между чтением и обновлением.
	ErrStaleRecord = errors.New("stale record")
	// ErrInvalidArgument — некорректные входные данные для хранилища.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFoundMedia — загруженный объект не найден или не прошёл проверку.
	ErrNotFoundMedia = errors.New("media not found")
)

// RecordStorage описывает операции над models.ContentRecord.
type RecordStorage interface {
	// InsertRecord атомарно сохраняет одну запись.
	// Нарушение уникальности source_link — ErrAlreadyExists.
	InsertRecord(ctx context.Context, rec *models.ContentRecord) error
	// ExistsBySourceLink — точечная проверка по уникальному ключу.
	ExistsBySourceLink(ctx context.Context, link string) (bool, error)
	// RecordByID возвращает запись; если её нет — ErrNotFound.
	RecordByID(ctx context.Context, id uuid.UUID) (*models.ContentRecord, error)
	// ListByStatus возвращает страницу записей в статусе, отсортированных
	// по created_at DESC, id DESC. Некорректный page_token — ErrInvalidCursor.
	ListByStatus(ctx context.Context, status models.Status, opts models.ListOptions) (*models.Page, error)
	// UpdateRecord перезаписывает изменяемые поля записи при условии,
	// что в хранилище она всё ещё в статусе expected и с версией rec.Version
	// (compare-and-swap). После успешной записи rec.Version увеличивается на 1.
	// Нет записи — ErrNotFound, статус или версия другие — ErrStaleRecord.
	UpdateRecord(ctx context.Context, rec *models.ContentRecord, expected models.Status) error
}

// Storage задаёт контракт хранилища записей вместе с закрытием ресурсов.
type Storage interface {
	RecordStorage
	Close()
}

// UploadInfo — данные для прямой загрузки медиа по presigned URL.
type UploadInfo struct {
	UploadURL      string
	Key            string
	Expires        time.Time
	RequiredHeader map[string]string
}

// MediaStorage описывает хранилище иллюстраций к записям.
type MediaStorage interface {
	// MediaUploadURL выдаёт presigned PUT для ключа media/<id>/<uuid>.<ext>.
	MediaUploadURL(ctx context.Context, id uuid.UUID, contentType string, contentLength int64) (*UploadInfo, error)
	// ConfirmMediaUpload проверяет загруженный объект (наличие, размер, тип)
	// и возвращает ссылку на него. Ошибка проверки — ErrNotFoundMedia.
	ConfirmMediaUpload(ctx context.Context, id uuid.UUID, key string) (string, error)
}
