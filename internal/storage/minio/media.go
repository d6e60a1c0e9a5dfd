package minio

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

// MediaUploadURL генерирует presigned PUT URL для иллюстрации к записи.
// Ключ имеет вид "media/<recordID>/<uuid>.<ext>"; клиент обязан передать
// RequiredHeader при загрузке.
func (s *MediaStorage) MediaUploadURL(ctx context.Context, id uuid.UUID, contentType string, contentLength int64) (*storage.UploadInfo, error) {
	const op = "storage.minio.MediaUploadURL"

	if contentLength <= 0 || contentLength > s.media.MaxSizeBytes {
		return nil, fmt.Errorf("%s: content length %d: %w", op, contentLength, storage.ErrInvalidArgument)
	}

	if !slices.Contains(s.media.AllowedContentTypes, contentType) {
		return nil, fmt.Errorf("%s: content type %q: %w", op, contentType, storage.ErrInvalidArgument)
	}

	key := path.Join("media", id.String(), uuid.NewString()+extFor(contentType))

	u, err := s.client.PresignedPutObject(ctx, s.s3.Bucket, key, s.s3.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &storage.UploadInfo{
		UploadURL: u.String(),
		Key:       key,
		Expires:   time.Now().Add(s.s3.PresignTTL).UTC(),
		RequiredHeader: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.FormatInt(contentLength, 10),
		},
	}, nil
}

// ConfirmMediaUpload подтверждает, что объект key загружен для записи id
// и удовлетворяет ограничениям. Возвращает публичный URL, если задан
// PublicBaseURL, иначе сам ключ.
func (s *MediaStorage) ConfirmMediaUpload(ctx context.Context, id uuid.UUID, key string) (string, error) {
	const op = "storage.minio.ConfirmMediaUpload"

	prefix := "media/" + id.String() + "/"
	if !strings.HasPrefix(key, prefix) {
		return "", fmt.Errorf("%s: foreign key: %w", op, storage.ErrInvalidArgument)
	}

	info, err := s.client.StatObject(ctx, s.s3.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == 404 {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFoundMedia)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if info.Size <= 0 || info.Size > s.media.MaxSizeBytes {
		return "", fmt.Errorf("%s: size %d: %w", op, info.Size, storage.ErrNotFoundMedia)
	}

	if ct := info.ContentType; ct != "" && !slices.Contains(s.media.AllowedContentTypes, ct) {
		return "", fmt.Errorf("%s: content type %q: %w", op, ct, storage.ErrNotFoundMedia)
	}

	if s.s3.PublicBaseURL == "" {
		return key, nil
	}

	return strings.TrimRight(s.s3.PublicBaseURL, "/") + "/" + key, nil
}

func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}

	return ""
}
