package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/apierrors"
)

// StartRun — POST /runs: запускает прогон в фоне и сразу отвечает 202.
// Тело необязательно; занятость прогоном — 409/aborted.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeStrict(r, &req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	window := h.defaults.Window
	if req.Window != "" {
		d, err := time.ParseDuration(req.Window)
		if err != nil {
			apierrors.WriteError(w, r, statusErrorInvalidArgument())
			return
		}
		window = d
	}

	target := h.defaults.TargetNew
	if req.TargetNew != 0 {
		target = req.TargetNew
	}

	if err := h.svc.StartRun(r.Context(), window, target); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, RunAccepted{TargetNew: target, Window: window.String()})
}

// LastRun — GET /runs/last: итоги последнего завершённого прогона.
func (h *Handlers) LastRun(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.svc.LastRun()
	if !ok {
		apierrors.WriteError(w, r, status.Error(codes.NotFound, "no runs yet"))
		return
	}

	writeJSON(w, http.StatusOK, sum)
}
