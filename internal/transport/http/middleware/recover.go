package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/apierrors"
	logctx "github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

var errHandlerPanic = errors.New("admin handler panic")

// Recover превращает panic обработчика в 500/internal. Причина и стек
// остаются в событии "admin_panic"; http.ErrAbortHandler пробрасывается
// дальше, чтобы net/http оборвал соединение.
func Recover() Middleware {
	const op = "middleware.Recover"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "admin_panic",
					slog.String("op", op),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errHandlerPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
