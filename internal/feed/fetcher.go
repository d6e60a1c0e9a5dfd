package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

var (
	// ErrDisallowed — robots.txt хоста запрещает загрузку ленты.
	ErrDisallowed = errors.New("fetch disallowed by robots.txt")
	// ErrTooLarge — тело ответа превышает лимит.
	ErrTooLarge = errors.New("feed body exceeds size limit")
	// ErrStatus — сервер вернул не-2xx статус.
	ErrStatus = errors.New("unexpected http status")
)

// FetcherOptions — параметры загрузчика лент.
type FetcherOptions struct {
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
}

// Fetcher загружает сырые байты лент по HTTP.
// Правила robots.txt кешируются по хосту на время жизни процесса.
type Fetcher struct {
	client *http.Client
	opts   FetcherOptions

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

// NewFetcher создаёт загрузчик. client настраивается извне (таймауты, прокси).
func NewFetcher(client *http.Client, opts FetcherOptions) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "ingest-service/1.0"
	}

	return &Fetcher{
		client: client,
		opts:   opts,
		robots: make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch загружает ленту src и возвращает тело ответа целиком.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	const op = "feed.Fetch"

	lg := log.From(ctx)

	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%s: invalid url %q", op, src)
	}

	if f.opts.RespectRobots && !f.allowed(ctx, u) {
		lg.Warn("robots_disallowed",
			slog.String("op", op),
			slog.String("url", src),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrDisallowed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: new_request: %w", op, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		lg.Warn("http_error",
			slog.String("op", op),
			slog.String("url", src),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: do: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w: status=%d", op, ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", op, err)
	}

	if int64(len(body)) > f.opts.MaxBytes {
		return nil, fmt.Errorf("%s: %w", op, ErrTooLarge)
	}

	return body, nil
}

// allowed проверяет robots.txt хоста. Недоступный robots.txt не блокирует
// загрузку; результат (в том числе отсутствие правил) кешируется, если
// загрузку не оборвал ctx.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host

	f.mu.Lock()
	data, ok := f.robots[host]
	f.mu.Unlock()

	if !ok {
		data = f.loadRobots(ctx, host)

		if ctx.Err() == nil {
			f.mu.Lock()
			f.robots[host] = data
			f.mu.Unlock()
		}
	}

	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return data.TestAgent(path, f.opts.UserAgent)
}

func (f *Fetcher) loadRobots(ctx context.Context, host string) *robotstxt.RobotsData {
	const op = "feed.loadRobots"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.From(ctx).Debug("robots_unavailable",
			slog.String("op", op),
			slog.String("host", host),
			slog.String("err", err.Error()),
		)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}

	return data
}
