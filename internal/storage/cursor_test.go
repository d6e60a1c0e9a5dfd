package storage

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

func TestPageToken_RoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 5, 1, 10, 0, 0, 123, time.UTC)
	id := uuid.New()

	gotTS, gotID, err := DecodePageToken(EncodePageToken(ts, id))
	require.NoError(t, err)
	require.True(t, gotTS.Equal(ts))
	require.Equal(t, id, gotID)
}

func TestDecodePageToken_Invalid(t *testing.T) {
	t.Parallel()

	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	for _, tok := range []string{
		"%%%not-base64%%%",
		enc("no-separator"),
		enc("abc|" + uuid.NewString()),
		enc("123|not-a-uuid"),
	} {
		_, _, err := DecodePageToken(tok)
		require.Error(t, err, tok)
	}
}

func TestNextPageToken(t *testing.T) {
	t.Parallel()

	keys := []models.ContentRecord{
		{CreatedAt: time.Unix(2, 0), ID: uuid.New()},
		{CreatedAt: time.Unix(1, 0), ID: uuid.New()},
	}

	require.Empty(t, NextPageToken(nil, 2))
	require.Empty(t, NextPageToken(keys, 3), "short page is the last one")
	require.Equal(t, EncodePageToken(keys[1].CreatedAt, keys[1].ID), NextPageToken(keys, 2))
}
