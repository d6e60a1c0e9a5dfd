// middleware — net/http мидлвары admin API модерации.
package middleware

import (
	"context"
	"net/http"
)

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxSubject
	ctxTrace
)

// Chain применяет мидлвары к обработчику в порядке их перечисления:
// первый в списке оказывается внешним.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	return h
}

// trace — изменяемые сведения о запросе, которые внутренние мидлвары
// (Auth) сообщают внешнему журналу запросов (Logging).
type trace struct {
	moderator string
}

func traceFrom(ctx context.Context) *trace {
	t, _ := ctx.Value(ctxTrace).(*trace)
	return t
}

// responseRecorder запоминает статус и объём ответа admin API.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *responseRecorder) WriteHeader(code int) {
	if w.status != 0 {
		return
	}

	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n

	return n, err
}

// Unwrap открывает исходный writer для http.ResponseController.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// code — итоговый статус; обработчик без записи ответа даёт 200.
func (w *responseRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}
