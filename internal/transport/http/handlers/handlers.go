// handlers — REST-обработчики admin API поверх сервисного слоя.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

//go:generate mockgen -source=handlers.go -destination=../../../../mocks/handlers.go -package=mocks

// Service — операции, которые нужны обработчикам.
type Service interface {
	RecordByID(ctx context.Context, id string) (*models.ContentRecord, error)
	ListByStatus(ctx context.Context, status string, opts models.ListOptions) (*models.Page, error)
	MediaUploadURL(ctx context.Context, id, contentType string, contentLength int64) (*storage.UploadInfo, error)
	AttachMedia(ctx context.Context, id, ref string) (*models.ContentRecord, error)
	Publish(ctx context.Context, id string) (*models.ContentRecord, error)
	Reject(ctx context.Context, id string) (*models.ContentRecord, error)
	Unpublish(ctx context.Context, id string) (*models.ContentRecord, error)
	EditInsight(ctx context.Context, id, text string) (*models.ContentRecord, error)
	Reclassify(ctx context.Context, id string) (*models.ContentRecord, error)
	StartRun(ctx context.Context, window time.Duration, targetNew int) error
	LastRun() (*models.RunSummary, bool)
}

// RunDefaults — параметры прогона, если запрос их не задал.
type RunDefaults struct {
	Window    time.Duration
	TargetNew int
}

// Handlers агрегирует зависимости.
type Handlers struct {
	svc      Service
	defaults RunDefaults
}

func New(svc Service, defaults RunDefaults) *Handlers {
	return &Handlers{svc: svc, defaults: defaults}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	return dec.Decode(value)
}

// statusErrorInvalidArgument — локальная ошибка разбора запроса -> InvalidArgument.
func statusErrorInvalidArgument() error {
	return status.Error(codes.InvalidArgument, "invalid argument")
}
