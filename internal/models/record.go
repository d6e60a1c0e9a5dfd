package models

import (
	"time"

	"github.com/google/uuid"
)

// Status — состояние записи в модерации.
type Status string

const (
	// StatusQueued — начальное состояние: запись ждёт медиа и решения модератора.
	StatusQueued Status = "queued"
	// StatusPublished — запись видна публично.
	StatusPublished Status = "published"
	// StatusRejected — терминальное состояние.
	StatusRejected Status = "rejected"
)

// Valid сообщает, является ли значение известным статусом.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusPublished, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseStatus разбирает строковое представление статуса.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

// ContentRecord — сохраняемая запись, ради которой существует весь конвейер.
//
// Особенности:
//   - ID — UUIDv4, назначается при создании и не меняется;
//   - SourceLink уникален в хранилище;
//   - Title, PublishedAt неизменны после создания;
//   - Status == StatusPublished влечёт непустой MediaRef;
//   - временные метки в UTC.
type ContentRecord struct {
	ID         uuid.UUID
	SourceLink string
	SourceName string
	Title      string
	// Excerpt — исходный тизер; нужен для повторной классификации.
	Excerpt     string
	PublishedAt time.Time

	InsightText     string
	InsightFallback bool

	Category      string
	LocationLabel string
	Tags          []string

	// MediaRef — ссылка на иллюстрацию; обязательна для публикации.
	MediaRef string
	Status   Status
	// LiveAt — момент перехода в Published; nil вне этого состояния.
	LiveAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	// Version растёт на 1 при каждом UpdateRecord; по нему хранилище
	// отсекает запись поверх чужого изменения.
	Version int64
}

// ListOptions — параметры выборки списков.
//
// Особенности:
//   - при Limit == 0 применяется серверный default (config.LimitsConfig.Default);
//   - PageToken == "" -> первая страница.
type ListOptions struct {
	Limit     int32
	PageToken string
}

// Page — страница результатов со ссылкой на продолжение.
type Page struct {
	Items         []ContentRecord
	NextPageToken string
}
