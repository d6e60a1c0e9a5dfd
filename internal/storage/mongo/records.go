package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

// recordDoc — BSON-представление записи. Время хранится с точностью до миллисекунд.
type recordDoc struct {
	ID              string     `bson:"_id"`
	SourceLink      string     `bson:"source_link"`
	SourceName      string     `bson:"source_name"`
	Title           string     `bson:"title"`
	Excerpt         string     `bson:"excerpt"`
	PublishedAt     time.Time  `bson:"published_at"`
	InsightText     string     `bson:"insight_text"`
	InsightFallback bool       `bson:"insight_fallback"`
	Category        string     `bson:"category"`
	LocationLabel   string     `bson:"location_label"`
	Tags            []string   `bson:"tags"`
	MediaRef        string     `bson:"media_ref"`
	Status          string     `bson:"status"`
	LiveAt          *time.Time `bson:"live_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
	Version         int64      `bson:"version"`
}

func toDoc(rec *models.ContentRecord) recordDoc {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	return recordDoc{
		ID:              rec.ID.String(),
		SourceLink:      rec.SourceLink,
		SourceName:      rec.SourceName,
		Title:           rec.Title,
		Excerpt:         rec.Excerpt,
		PublishedAt:     rec.PublishedAt.UTC(),
		InsightText:     rec.InsightText,
		InsightFallback: rec.InsightFallback,
		Category:        rec.Category,
		LocationLabel:   rec.LocationLabel,
		Tags:            tags,
		MediaRef:        rec.MediaRef,
		Status:          string(rec.Status),
		LiveAt:          rec.LiveAt,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
		Version:         rec.Version,
	}
}

func (d recordDoc) toModel() (*models.ContentRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad id %q: %w", d.ID, err)
	}

	rec := &models.ContentRecord{
		ID:              id,
		SourceLink:      d.SourceLink,
		SourceName:      d.SourceName,
		Title:           d.Title,
		Excerpt:         d.Excerpt,
		PublishedAt:     d.PublishedAt.UTC(),
		InsightText:     d.InsightText,
		InsightFallback: d.InsightFallback,
		Category:        d.Category,
		LocationLabel:   d.LocationLabel,
		Tags:            d.Tags,
		MediaRef:        d.MediaRef,
		Status:          models.Status(d.Status),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		Version:         d.Version,
	}
	if d.LiveAt != nil {
		t := d.LiveAt.UTC()
		rec.LiveAt = &t
	}

	return rec, nil
}

func (m *Mongo) InsertRecord(ctx context.Context, rec *models.ContentRecord) error {
	const op = "storage.mongo.InsertRecord"

	if _, err := m.records.InsertOne(ctx, toDoc(rec)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mongo) ExistsBySourceLink(ctx context.Context, link string) (bool, error) {
	const op = "storage.mongo.ExistsBySourceLink"

	n, err := m.records.CountDocuments(ctx, bson.D{{Key: "source_link", Value: link}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (m *Mongo) RecordByID(ctx context.Context, id uuid.UUID) (*models.ContentRecord, error) {
	const op = "storage.mongo.RecordByID"

	var doc recordDoc
	if err := m.records.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// ListByStatus — keyset-пагинация по (created_at DESC, _id DESC).
func (m *Mongo) ListByStatus(ctx context.Context, status models.Status, opts models.ListOptions) (*models.Page, error) {
	const op = "storage.mongo.ListByStatus"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}

	filter := bson.D{{Key: "status", Value: string(status)}}
	if opts.PageToken != "" {
		createdCur, idCur, err := storage.DecodePageToken(opts.PageToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidCursor)
		}

		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "created_at", Value: bson.D{{Key: "$lt", Value: createdCur}}}},
			bson.D{
				{Key: "created_at", Value: createdCur},
				{Key: "_id", Value: bson.D{{Key: "$lt", Value: idCur.String()}}},
			},
		}})
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := m.records.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	var page models.Page
	for cur.Next(ctx) {
		var doc recordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		rec, err := doc.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		page.Items = append(page.Items, *rec)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	page.NextPageToken = storage.NextPageToken(page.Items, limit)

	return &page, nil
}

// UpdateRecord — compare-and-swap по статусу и версии через фильтр UpdateOne.
func (m *Mongo) UpdateRecord(ctx context.Context, rec *models.ContentRecord, expected models.Status) error {
	const op = "storage.mongo.UpdateRecord"

	doc := toDoc(rec)
	set := bson.D{
		{Key: "insight_text", Value: doc.InsightText},
		{Key: "insight_fallback", Value: doc.InsightFallback},
		{Key: "category", Value: doc.Category},
		{Key: "location_label", Value: doc.LocationLabel},
		{Key: "tags", Value: doc.Tags},
		{Key: "media_ref", Value: doc.MediaRef},
		{Key: "status", Value: doc.Status},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}

	if doc.LiveAt != nil {
		set = append(set, bson.E{Key: "live_at", Value: *doc.LiveAt})
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}
	if doc.LiveAt == nil {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "live_at", Value: ""}}})
	}

	// Документы без поля version считаются версией 0.
	var version any = doc.Version
	if doc.Version == 0 {
		version = bson.D{{Key: "$in", Value: bson.A{int64(0), nil}}}
	}

	res, err := m.records.UpdateOne(ctx, bson.D{
		{Key: "_id", Value: doc.ID},
		{Key: "status", Value: string(expected)},
		{Key: "version", Value: version},
	}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 1 {
		rec.Version++
		return nil
	}

	n, err := m.records.CountDocuments(ctx, bson.D{{Key: "_id", Value: doc.ID}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: expected %s@%d: %w", op, expected, rec.Version, storage.ErrStaleRecord)
}
