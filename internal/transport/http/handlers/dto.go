package handlers

import (
	"time"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

// RecordResponse — JSON-представление ContentRecord.
type RecordResponse struct {
	ID              string     `json:"id"`
	SourceLink      string     `json:"source_link"`
	SourceName      string     `json:"source_name"`
	Title           string     `json:"title"`
	Excerpt         string     `json:"excerpt,omitempty"`
	PublishedAt     time.Time  `json:"published_at"`
	InsightText     string     `json:"insight_text"`
	InsightFallback bool       `json:"insight_fallback"`
	Category        string     `json:"category"`
	LocationLabel   string     `json:"location_label"`
	Tags            []string   `json:"tags"`
	MediaRef        string     `json:"media_ref,omitempty"`
	Status          string     `json:"status"`
	LiveAt          *time.Time `json:"live_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RecordListResponse — страница записей.
type RecordListResponse struct {
	Items         []RecordResponse `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// PresignRequest — запрос на presigned PUT.
type PresignRequest struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
}

// PresignResponse — данные для загрузки медиа клиентом.
type PresignResponse struct {
	UploadURL      string            `json:"upload_url"`
	Key            string            `json:"key"`
	Expires        time.Time         `json:"expires"`
	RequiredHeader map[string]string `json:"required_headers,omitempty"`
}

// AttachMediaRequest — ссылка на медиа или ключ загруженного объекта.
type AttachMediaRequest struct {
	MediaRef string `json:"media_ref"`
}

// EditInsightRequest — новый текст инсайта.
type EditInsightRequest struct {
	InsightText string `json:"insight_text"`
}

// RunRequest — параметры внепланового прогона; нули заменяются значениями из конфига.
// Window — длительность в формате time.ParseDuration ("48h").
type RunRequest struct {
	TargetNew int    `json:"target_new,omitempty"`
	Window    string `json:"window,omitempty"`
}

// RunAccepted — ответ на запуск прогона.
type RunAccepted struct {
	TargetNew int    `json:"target_new"`
	Window    string `json:"window"`
}

func recordFromModel(rec *models.ContentRecord) RecordResponse {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	return RecordResponse{
		ID:              rec.ID.String(),
		SourceLink:      rec.SourceLink,
		SourceName:      rec.SourceName,
		Title:           rec.Title,
		Excerpt:         rec.Excerpt,
		PublishedAt:     rec.PublishedAt,
		InsightText:     rec.InsightText,
		InsightFallback: rec.InsightFallback,
		Category:        rec.Category,
		LocationLabel:   rec.LocationLabel,
		Tags:            tags,
		MediaRef:        rec.MediaRef,
		Status:          string(rec.Status),
		LiveAt:          rec.LiveAt,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func recordListFromModel(page *models.Page) RecordListResponse {
	items := make([]RecordResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, recordFromModel(&page.Items[i]))
	}

	return RecordListResponse{Items: items, NextPageToken: page.NextPageToken}
}

func presignFromModel(info *storage.UploadInfo) PresignResponse {
	return PresignResponse{
		UploadURL:      info.UploadURL,
		Key:            info.Key,
		Expires:        info.Expires,
		RequiredHeader: info.RequiredHeader,
	}
}
