package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/apierrors"
	logctx "github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// AuthConfig — параметры проверки access-токенов модераторов.
type AuthConfig struct {
	// Secret — ключ HS256; пустой ключ отключает проверку.
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

var errUnexpectedAlg = errors.New("unexpected signing method")

// Auth требует валидный Bearer JWT (HS256) и кладёт его subject в контекст
// и в логгер запроса (атрибут moderator).
// Ошибка проверки — 401/unauthenticated без деталей.
func Auth(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg.Secret == "" {
			return next
		}

		parser := jwt.NewParser(parserOptions(cfg)...)
		key := []byte(cfg.Secret)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				apierrors.WriteError(w, r, status.Error(codes.Unauthenticated, "missing token"))
				return
			}

			claims := &jwt.RegisteredClaims{}
			_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errUnexpectedAlg
				}

				return key, nil
			})
			if err != nil {
				reason := "invalid"
				if errors.Is(err, jwt.ErrTokenExpired) {
					reason = "expired"
				}
				logctx.From(r.Context()).Warn("auth_rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", reason),
				)
				apierrors.WriteError(w, r, status.Error(codes.Unauthenticated, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxSubject, claims.Subject)
			ctx = logctx.WithRequest(ctx, "", claims.Subject)
			if tr := traceFrom(ctx); tr != nil {
				tr.moderator = claims.Subject
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFrom возвращает subject проверенного токена.
func SubjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(ctxSubject).(string)
	return sub
}

func parserOptions(cfg AuthConfig) []jwt.ParserOption {
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = 5 * time.Second
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}

	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return opts
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])

	return token, token != ""
}
