package interceptors

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// capHandler — slog.Handler, запоминающий последнюю запись и её атрибуты.
type capHandler struct {
	mu      sync.Mutex
	base    []slog.Attr
	lastMsg string
	attrs   map[string]any
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any, len(h.base)+8)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})
	h.lastMsg = r.Message
	h.attrs = out

	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.base = append(h.base, attrs...)
	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

var unaryInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestRecover_PanicToInternal(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	icpt := Recover(slog.New(h))

	resp, err := icpt(context.Background(), nil, unaryInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})

	require.Nil(t, resp)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, "panic_recovered", h.lastMsg)
	require.Equal(t, unaryInfo.FullMethod, h.attrs["method"])
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestStreamRecover_PanicToInternal(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	icpt := StreamRecover(slog.New(h))

	err := icpt(nil, fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"},
		func(any, grpc.ServerStream) error { panic("boom") })

	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, "panic_recovered", h.lastMsg)
}

func TestUnaryLogging_PropagatesLogger(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	icpt := UnaryLogging(slog.New(h))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "rid-1"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5555}})

	var inner *slog.Logger
	_, err := icpt(ctx, nil, unaryInfo, func(ctx context.Context, _ any) (any, error) {
		inner = log.From(ctx)
		return nil, status.Error(codes.NotFound, "nope")
	})

	require.Error(t, err)
	require.NotNil(t, inner)
	require.NotSame(t, slog.Default(), inner)
	require.Equal(t, "grpc", h.lastMsg)
	require.Equal(t, "rid-1", h.attrs["request_id"])
	require.Equal(t, "127.0.0.1:5555", h.attrs["peer"])
	require.Equal(t, codes.NotFound.String(), h.attrs["code"])
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	icpt := WithTimeout(50 * time.Millisecond)

	var left time.Duration
	_, _ = icpt(context.Background(), nil, unaryInfo, func(ctx context.Context, _ any) (any, error) {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		left = time.Until(dl)
		return nil, nil
	})
	require.Greater(t, left, time.Duration(0))
	require.LessOrEqual(t, left, 50*time.Millisecond)

	// Существующий дедлайн не трогаем.
	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := parent.Deadline()

	_, _ = icpt(parent, nil, unaryInfo, func(ctx context.Context, _ any) (any, error) {
		got, _ := ctx.Deadline()
		require.Equal(t, want, got)
		return nil, nil
	})

	// d <= 0 — без дедлайна.
	_, _ = WithTimeout(0)(context.Background(), nil, unaryInfo, func(ctx context.Context, _ any) (any, error) {
		_, ok := ctx.Deadline()
		require.False(t, ok)
		return nil, nil
	})
}
