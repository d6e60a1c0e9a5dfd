package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func queued() models.ContentRecord {
	return NewRecord(
		models.FeedItem{Title: "T", Link: "https://x.example/1", PublishedAt: now.Add(-time.Hour)},
		models.SourceConfig{Name: "src"},
		models.Enrichment{InsightText: "i", Category: "opening", LocationLabel: "OKC Metro", Tags: []string{"retail"}},
		now.Add(-time.Minute),
	)
}

func TestNewRecord_IsQueued(t *testing.T) {
	t.Parallel()

	rec := queued()
	require.NotEqual(t, uuid.Nil, rec.ID)
	require.Equal(t, models.StatusQueued, rec.Status)
	require.Equal(t, "src", rec.SourceName)
	require.Empty(t, rec.MediaRef)
	require.Nil(t, rec.LiveAt)
	require.Equal(t, []string{"retail"}, rec.Tags)
}

// TestApply_PublishWithoutMedia_PreconditionFailed — публикация без медиа не меняет состояние.
func TestApply_PublishWithoutMedia_PreconditionFailed(t *testing.T) {
	t.Parallel()

	rec := queued()
	got, err := Apply(rec, Transition{Action: ActionPublish}, now)

	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.Equal(t, models.StatusQueued, got.Status)
	require.Equal(t, rec, got)
}

func TestApply_HappyPath(t *testing.T) {
	t.Parallel()

	rec := queued()

	rec, err := Apply(rec, Transition{Action: ActionAttachMedia, MediaRef: " https://cdn.example/a.jpg "}, now)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/a.jpg", rec.MediaRef)
	require.Equal(t, models.StatusQueued, rec.Status)

	rec, err = Apply(rec, Transition{Action: ActionPublish}, now)
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, rec.Status)
	require.NotNil(t, rec.LiveAt)
	require.True(t, rec.LiveAt.Equal(now))
	require.True(t, rec.UpdatedAt.Equal(now))

	rec, err = Apply(rec, Transition{Action: ActionEditInsight, InsightText: "edited"}, now)
	require.NoError(t, err)
	require.Equal(t, "edited", rec.InsightText)

	rec, err = Apply(rec, Transition{Action: ActionUnpublish}, now)
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, rec.Status)
	require.Nil(t, rec.LiveAt)
	require.Equal(t, "https://cdn.example/a.jpg", rec.MediaRef, "media stays attached")

	// Повторная публикация без повторной загрузки.
	rec, err = Apply(rec, Transition{Action: ActionPublish}, now)
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, rec.Status)
}

func TestApply_InvalidTransitions(t *testing.T) {
	t.Parallel()

	published := queued()
	published.MediaRef = "m"
	published, err := Apply(published, Transition{Action: ActionPublish}, now)
	require.NoError(t, err)

	rejected, err := Apply(queued(), Transition{Action: ActionReject}, now)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)

	cases := []struct {
		name string
		rec  models.ContentRecord
		tr   Transition
	}{
		{"unpublish queued", queued(), Transition{Action: ActionUnpublish}},
		{"publish published", published, Transition{Action: ActionPublish}},
		{"reject published", published, Transition{Action: ActionReject}},
		{"attach to published", published, Transition{Action: ActionAttachMedia, MediaRef: "x"}},
		{"publish rejected", rejected, Transition{Action: ActionPublish}},
		{"reject rejected", rejected, Transition{Action: ActionReject}},
		{"unpublish rejected", rejected, Transition{Action: ActionUnpublish}},
		{"edit rejected", rejected, Transition{Action: ActionEditInsight, InsightText: "x"}},
		{"reclassify rejected", rejected, Transition{Action: ActionReclassify}},
		{"unknown action", queued(), Transition{Action: "archive"}},
	}

	for _, tc := range cases {
		got, err := Apply(tc.rec, tc.tr, now)
		require.ErrorIs(t, err, ErrInvalidTransition, tc.name)
		require.Equal(t, tc.rec, got, tc.name)
	}
}

func TestApply_InvalidArguments(t *testing.T) {
	t.Parallel()

	rec := queued()

	_, err := Apply(rec, Transition{Action: ActionAttachMedia, MediaRef: "  "}, now)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Apply(rec, Transition{Action: ActionEditInsight}, now)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApply_Reclassify(t *testing.T) {
	t.Parallel()

	rec := queued()
	got, err := Apply(rec, Transition{
		Action:     ActionReclassify,
		Enrichment: models.Enrichment{Category: "development", LocationLabel: "Edmond", Tags: []string{"tech"}},
	}, now)
	require.NoError(t, err)

	require.Equal(t, "development", got.Category)
	require.Equal(t, "Edmond", got.LocationLabel)
	require.Equal(t, []string{"tech"}, got.Tags)
	require.Equal(t, rec.InsightText, got.InsightText)
	require.Equal(t, []string{"retail"}, rec.Tags, "original untouched")
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	require.True(t, Allowed(ActionPublish, models.StatusQueued))
	require.False(t, Allowed(ActionPublish, models.StatusRejected))
	require.True(t, Allowed(ActionEditInsight, models.StatusPublished))
	require.False(t, Allowed("nope", models.StatusQueued))
}
