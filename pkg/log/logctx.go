// log переносит *slog.Logger через context.Context:
// HTTP-мидлвары, gRPC-интерсепторы и оркестратор кладут в контекст
// логгер с request_id/run_id, а нижние слои достают его через From.
package log

import (
	"context"
	"log/slog"
)

// Ключи атрибутов, общие для всех слоёв сервиса.
const (
	KeyRequestID = "request_id"
	KeyRunID     = "run_id"
	KeySource    = "source"
	KeyRecordID  = "record_id"
	KeyModerator = "moderator"
)

type loggerKey struct{}

// Into кладёт логгер в контекст. nil-логгер не меняет контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}

	return context.WithValue(ctx, loggerKey{}, l)
}

// From достаёт логгер из контекста (или возвращает slog.Default()).
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// With дополняет логгер из контекста атрибутами и возвращает новый контекст.
func With(ctx context.Context, args ...any) context.Context {
	return Into(ctx, From(ctx).With(args...))
}

// WithRun помечает логгер прогона пакетной загрузки.
func WithRun(ctx context.Context, runID string) context.Context {
	return With(ctx, slog.String(KeyRunID, runID))
}

// WithSource помечает логгер обработки одного источника.
func WithSource(ctx context.Context, name string) context.Context {
	return With(ctx, slog.String(KeySource, name))
}

// WithRequest помечает логгер запроса admin API. Пустые значения пропускаются.
func WithRequest(ctx context.Context, requestID, moderator string) context.Context {
	var args []any
	if requestID != "" {
		args = append(args, slog.String(KeyRequestID, requestID))
	}
	if moderator != "" {
		args = append(args, slog.String(KeyModerator, moderator))
	}
	if len(args) == 0 {
		return ctx
	}

	return With(ctx, args...)
}
