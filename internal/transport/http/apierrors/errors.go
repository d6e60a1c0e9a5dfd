// apierrors стандартизирует ответы об ошибках admin API.
// Ошибки сервиса сначала сводятся к gRPC codes (общий словарь кодов
// сервисов и шлюза), затем к HTTP-статусу и конверту
// {"error":{"code","message","request_id"}} без утечки деталей.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/service"
)

// Нестандартный код для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат ошибки.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Code сводит ошибку сервиса к gRPC-коду.
//
//	ErrInvalidArgument, ErrInvalidCursor   -> codes.InvalidArgument
//	ErrNotFound                            -> codes.NotFound
//	ErrPreconditionFailed, ErrMediaNotFound -> codes.FailedPrecondition
//	ErrInvalidTransition                   -> codes.FailedPrecondition
//	ErrConflict, ErrRunInProgress          -> codes.Aborted
//	ErrMediaUnavailable                    -> codes.Unavailable
//	context.DeadlineExceeded / Canceled    -> codes.DeadlineExceeded / Canceled
//	gRPC-статус                            -> его код
//	прочее                                 -> codes.Internal
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrInvalidCursor):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrPreconditionFailed),
		errors.Is(err, service.ErrMediaNotFound),
		errors.Is(err, service.ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrRunInProgress):
		return codes.Aborted
	case errors.Is(err, service.ErrMediaUnavailable):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}

	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	return codes.Internal
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
// err == nil — программная ошибка вызова: 500/internal.
// Недопустимый переход автомата получает собственный код invalid_transition (409).
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, ErrorResponse{Error: APIError{Code: "internal", Message: "internal error"}}
	}

	if errors.Is(err, service.ErrInvalidTransition) {
		return http.StatusConflict, ErrorResponse{Error: APIError{
			Code:    "invalid_transition",
			Message: "action is not allowed in the current state",
		}}
	}

	httpStatus, code, msg := baseFromGRPC(Code(err))

	return httpStatus, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// WriteError пишет статус и тело, добавляя request_id из заголовка.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func baseFromGRPC(c codes.Code) (int, string, string) {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case codes.NotFound:
		return http.StatusNotFound, "not_found", "not found"
	case codes.AlreadyExists:
		return http.StatusConflict, "already_exists", "already exists"
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed, "failed_precondition", "failed precondition"
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case codes.PermissionDenied:
		return http.StatusForbidden, "permission_denied", "permission denied"
	case codes.Aborted:
		return http.StatusConflict, "aborted", "aborted"
	case codes.Canceled:
		return StatusClientClosedRequest, "canceled", "canceled"
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
