package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	logctx "github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// Logging кладёт в контекст логгер запроса с request_id и по завершении
// пишет событие "admin_request": шаблон маршрута chi, статус, длительность
// и модератора, если Auth его опознал. 5xx пишутся с уровнем Error, 4xx — Warn.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := RequestIDFrom(r.Context())
			if rid == "" {
				rid = r.Header.Get(requestIDHeader)
			}

			tr := &trace{}
			ctx := context.WithValue(r.Context(), ctxTrace, tr)
			ctx = logctx.WithRequest(logctx.Into(ctx, l), rid, "")
			r = r.WithContext(ctx)

			rec := &responseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.code()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", rec.bytes),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			if tr.moderator != "" {
				attrs = append(attrs, slog.String(logctx.KeyModerator, tr.moderator))
			}

			logctx.From(ctx).LogAttrs(ctx, levelFor(rec.code()), "admin_request", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
