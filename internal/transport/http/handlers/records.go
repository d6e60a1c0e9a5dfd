package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/apierrors"
)

// ListRecords — GET /records?status=&limit=&page_token=.
// Без status отдаётся очередь модерации.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var opts models.ListOptions
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			apierrors.WriteError(w, r, statusErrorInvalidArgument())
			return
		}

		opts.Limit = int32(n)
	}
	opts.PageToken = q.Get("page_token")

	status := q.Get("status")
	if status == "" {
		status = string(models.StatusQueued)
	}

	page, err := h.svc.ListByStatus(r.Context(), status, opts)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordListFromModel(page))
}

func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RecordByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordFromModel(rec))
}

// PreviewRecord — GET /records/{id}/preview: HTML-превью карточки для модератора.
func (h *Handlers) PreviewRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RecordByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	html, err := renderPreview(rec)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (h *Handlers) MediaPresign(w http.ResponseWriter, r *http.Request) {
	var req PresignRequest
	if err := decodeStrict(r, &req); err != nil {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	info, err := h.svc.MediaUploadURL(r.Context(), chi.URLParam(r, "id"), req.ContentType, req.ContentLength)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presignFromModel(info))
}

func (h *Handlers) AttachMedia(w http.ResponseWriter, r *http.Request) {
	var req AttachMediaRequest
	if err := decodeStrict(r, &req); err != nil {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	rec, err := h.svc.AttachMedia(r.Context(), chi.URLParam(r, "id"), req.MediaRef)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordFromModel(rec))
}

func (h *Handlers) EditInsight(w http.ResponseWriter, r *http.Request) {
	var req EditInsightRequest
	if err := decodeStrict(r, &req); err != nil {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	rec, err := h.svc.EditInsight(r.Context(), chi.URLParam(r, "id"), req.InsightText)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordFromModel(rec))
}

func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.Publish)
}

func (h *Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.Reject)
}

func (h *Handlers) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.Unpublish)
}

func (h *Handlers) Reclassify(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.Reclassify)
}

// action — общий обработчик действий без тела запроса.
func (h *Handlers) action(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*models.ContentRecord, error)) {
	rec, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordFromModel(rec))
}
