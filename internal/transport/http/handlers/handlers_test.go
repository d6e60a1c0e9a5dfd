package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/service"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/mocks"
)

var (
	testID  = uuid.MustParse("7b0f3c1e-7f6d-4d8b-9a43-0c8f3f2a9b11")
	testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
)

func testRecord() *models.ContentRecord {
	return &models.ContentRecord{
		ID:            testID,
		SourceLink:    "https://news.example/coffee",
		SourceName:    "okc-news",
		Title:         "New coffee shop opens in Bricktown",
		Excerpt:       "Local roaster expands.",
		PublishedAt:   testNow.Add(-time.Hour),
		InsightText:   "A *strong* signal for downtown retail.",
		Category:      "opening",
		LocationLabel: "Bricktown",
		Tags:          []string{"food", "retail"},
		Status:        models.StatusQueued,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
}

func newRouter(t *testing.T) (*mocks.MockService, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)

	h := New(svc, RunDefaults{Window: 48 * time.Hour, TargetNew: 8})

	r := chi.NewRouter()
	r.Get("/records", h.ListRecords)
	r.Get("/records/{id}", h.GetRecord)
	r.Get("/records/{id}/preview", h.PreviewRecord)
	r.Post("/records/{id}/media/presign", h.MediaPresign)
	r.Post("/records/{id}/media", h.AttachMedia)
	r.Post("/records/{id}/publish", h.Publish)
	r.Post("/records/{id}/reject", h.Reject)
	r.Patch("/records/{id}/insight", h.EditInsight)
	r.Post("/runs", h.StartRun)
	r.Get("/runs/last", h.LastRun)

	return svc, r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))

	return env.Error.Code
}

func TestListRecords(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	svc.EXPECT().
		ListByStatus(gomock.Any(), "queued", models.ListOptions{Limit: 5, PageToken: "tok"}).
		Return(&models.Page{Items: []models.ContentRecord{*testRecord()}, NextPageToken: "next"}, nil)

	rr := do(h, http.MethodGet, "/records?limit=5&page_token=tok", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RecordListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	require.Equal(t, testID.String(), resp.Items[0].ID)
	require.Equal(t, "queued", resp.Items[0].Status)
	require.Equal(t, "next", resp.NextPageToken)
}

func TestListRecords_BadLimit(t *testing.T) {
	t.Parallel()

	_, h := newRouter(t)

	rr := do(h, http.MethodGet, "/records?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_argument", errCode(t, rr))
}

func TestListRecords_ServiceErrors(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	svc.EXPECT().ListByStatus(gomock.Any(), "archived", gomock.Any()).Return(nil, service.ErrInvalidArgument)
	svc.EXPECT().ListByStatus(gomock.Any(), "published", gomock.Any()).Return(nil, service.ErrInvalidCursor)

	rr := do(h, http.MethodGet, "/records?status=archived", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodGet, "/records?status=published&page_token=zzz", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRecord(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	svc.EXPECT().RecordByID(gomock.Any(), testID.String()).Return(testRecord(), nil)
	svc.EXPECT().RecordByID(gomock.Any(), "missing").Return(nil, service.ErrNotFound)

	rr := do(h, http.MethodGet, "/records/"+testID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RecordResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "Bricktown", resp.LocationLabel)
	require.Equal(t, []string{"food", "retail"}, resp.Tags)
	require.Nil(t, resp.LiveAt)

	rr = do(h, http.MethodGet, "/records/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errCode(t, rr))
}

func TestPreviewRecord(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	rec := testRecord()
	rec.InsightText = "A *strong* signal. <script>alert(1)</script>"
	svc.EXPECT().RecordByID(gomock.Any(), testID.String()).Return(rec, nil)

	rr := do(h, http.MethodGet, "/records/"+testID.String()+"/preview", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	require.Contains(t, body, "<h1>New coffee shop opens in Bricktown</h1>")
	require.Contains(t, body, "<em>strong</em>")
	require.Contains(t, body, `href="https://news.example/coffee"`)
	require.NotContains(t, body, "<script>")
}

func TestMediaPresign(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	svc.EXPECT().
		MediaUploadURL(gomock.Any(), testID.String(), "image/png", int64(1024)).
		Return(&storage.UploadInfo{UploadURL: "https://s3.example/put", Key: "media/x/y.png", Expires: testNow}, nil)

	rr := do(h, http.MethodPost, "/records/"+testID.String()+"/media/presign", `{"content_type":"image/png","content_length":1024}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp PresignResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "media/x/y.png", resp.Key)

	// Неизвестные поля запрещены.
	rr = do(h, http.MethodPost, "/records/"+testID.String()+"/media/presign", `{"content_type":"image/png","extra":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMediaPresign_Unavailable(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	svc.EXPECT().MediaUploadURL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, service.ErrMediaUnavailable)

	rr := do(h, http.MethodPost, "/records/"+testID.String()+"/media/presign", `{"content_type":"image/png","content_length":1}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAttachAndPublish(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	withMedia := testRecord()
	withMedia.MediaRef = "https://cdn.example/a.jpg"

	published := *withMedia
	published.Status = models.StatusPublished
	live := testNow
	published.LiveAt = &live

	gomock.InOrder(
		svc.EXPECT().AttachMedia(gomock.Any(), testID.String(), "https://cdn.example/a.jpg").Return(withMedia, nil),
		svc.EXPECT().Publish(gomock.Any(), testID.String()).Return(&published, nil),
	)

	rr := do(h, http.MethodPost, "/records/"+testID.String()+"/media", `{"media_ref":"https://cdn.example/a.jpg"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodPost, "/records/"+testID.String()+"/publish", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RecordResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "published", resp.Status)
	require.NotNil(t, resp.LiveAt)
}

func TestModerationErrors(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	svc.EXPECT().Publish(gomock.Any(), "a").Return(nil, service.ErrPreconditionFailed)
	svc.EXPECT().Publish(gomock.Any(), "b").Return(nil, service.ErrInvalidTransition)
	svc.EXPECT().Reject(gomock.Any(), "c").Return(nil, service.ErrConflict)

	rr := do(h, http.MethodPost, "/records/a/publish", "")
	require.Equal(t, http.StatusPreconditionFailed, rr.Code)
	require.Equal(t, "failed_precondition", errCode(t, rr))

	rr = do(h, http.MethodPost, "/records/b/publish", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "invalid_transition", errCode(t, rr))

	rr = do(h, http.MethodPost, "/records/c/reject", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "aborted", errCode(t, rr))
}

func TestEditInsight(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	edited := testRecord()
	edited.InsightText = "edited"
	svc.EXPECT().EditInsight(gomock.Any(), testID.String(), "edited").Return(edited, nil)

	rr := do(h, http.MethodPatch, "/records/"+testID.String()+"/insight", `{"insight_text":"edited"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodPatch, "/records/"+testID.String()+"/insight", `not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStartRun(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	gomock.InOrder(
		svc.EXPECT().StartRun(gomock.Any(), 48*time.Hour, 8).Return(nil),
		svc.EXPECT().StartRun(gomock.Any(), 24*time.Hour, 3).Return(nil),
		svc.EXPECT().StartRun(gomock.Any(), gomock.Any(), gomock.Any()).Return(service.ErrRunInProgress),
	)

	// Без тела: значения по умолчанию.
	rr := do(h, http.MethodPost, "/runs", "")
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp RunAccepted
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 8, resp.TargetNew)
	require.Equal(t, "48h0m0s", resp.Window)

	rr = do(h, http.MethodPost, "/runs", `{"target_new":3,"window":"24h"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(h, http.MethodPost, "/runs", `{}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(h, http.MethodPost, "/runs", `{"window":"two days"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLastRun(t *testing.T) {
	t.Parallel()

	svc, h := newRouter(t)

	sum := &models.RunSummary{TargetNew: 8, TargetReached: true, Total: models.Counters{Created: 8}}
	gomock.InOrder(
		svc.EXPECT().LastRun().Return(nil, false),
		svc.EXPECT().LastRun().Return(sum, true),
	)

	rr := do(h, http.MethodGet, "/runs/last", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(h, http.MethodGet, "/runs/last", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got models.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.True(t, got.TargetReached)
	require.Equal(t, 8, got.Total.Created)
}

func TestRenderPreview_EscapesTitle(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	rec.Title = "# not a *heading*"

	html, err := renderPreview(rec)
	require.NoError(t, err)
	require.Contains(t, string(html), "<h1># not a *heading*</h1>")
}
