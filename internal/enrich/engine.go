// enrich присоединяет к элементу ленты сгенерированный комментарий
// и классификационные метаданные (категория, локация, теги).
//
// Генерация текста выполняется внешним сервисом и может не удаться;
// в этом случае Insight возвращает детерминированную выдержку,
// а классификаторы отрабатывают в любом случае.
package enrich

//go:generate mockgen -source=engine.go -destination=../../mocks/generator.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/feed"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

// InsightFallbackRunes — длина детерминированной выдержки в рунах.
const InsightFallbackRunes = 280

var (
	// ErrNoGenerator — генератор не сконфигурирован.
	ErrNoGenerator = errors.New("text generator is not configured")
	// ErrEmptyInsight — генератор вернул пустой текст.
	ErrEmptyInsight = errors.New("generator returned empty text")
)

const insightInstruction = "You are a local business analyst. Write two or three sentences of original " +
	"commentary on what this news means for local businesses, investors and residents. " +
	"Do not restate or summarize the article. Answer in plain text without headings or lists."

// Generator — внешний сервис генерации текста.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result — исход генерации комментария. При Fallback == true Text содержит
// выдержку, а Err хранит причину отказа генератора.
type Result struct {
	Text     string
	Fallback bool
	Err      error
}

// Options — параметры шлюза вызовов генератора.
type Options struct {
	// MaxConcurrent — максимум одновременных вызовов.
	MaxConcurrent int64
	// Delay — минимальный интервал между стартами вызовов.
	Delay time.Duration
	// Timeout — таймаут одного вызова.
	Timeout time.Duration
	// OnResult вызывается после каждой генерации (метрики).
	OnResult func(Result)
}

// Engine объединяет генерацию комментария и классификаторы.
type Engine struct {
	classifier *Classifier
	gen        Generator
	opts       Options

	sem *semaphore.Weighted

	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

// New создаёт движок обогащения. gen может быть nil: тогда каждый
// комментарий строится из выдержки.
func New(rules Rules, gen Generator, opts Options) (*Engine, error) {
	const op = "enrich.engine.New"

	cl, err := NewClassifier(rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Engine{
		classifier: cl,
		gen:        gen,
		opts:       opts,
		sem:        semaphore.NewWeighted(opts.MaxConcurrent),
		now:        time.Now,
	}, nil
}

// Enrich никогда не прерывает обработку элемента: отказ генератора
// превращается в выдержку, классификация выполняется всегда.
func (e *Engine) Enrich(ctx context.Context, item models.FeedItem, src models.SourceConfig) models.Enrichment {
	res := e.Insight(ctx, item, src.SourceType)
	cls := e.classifier.Classify(item, src.CategoryHint)

	if res.Fallback {
		log.From(ctx).Info("generation_fallback",
			slog.String("op", "enrich.engine.Enrich"),
			slog.String("link", item.Link),
			slog.String("reason", errText(res.Err)),
		)
	}

	return models.Enrichment{
		InsightText:     res.Text,
		InsightFallback: res.Fallback,
		Category:        cls.Category,
		LocationLabel:   cls.LocationLabel,
		Tags:            cls.Tags,
	}
}

// Classify выполняет только чистые классификаторы.
func (e *Engine) Classify(item models.FeedItem, categoryHint string) Classification {
	return e.classifier.Classify(item, categoryHint)
}

// Insight запрашивает комментарий у генератора через шлюз конкурентности
// и темпа. Любая ошибка (таймаут, сбой, пустой ответ) даёт Fallback.
func (e *Engine) Insight(ctx context.Context, item models.FeedItem, sourceType string) Result {
	res := e.insight(ctx, item, sourceType)

	if e.opts.OnResult != nil {
		e.opts.OnResult(res)
	}

	return res
}

func (e *Engine) insight(ctx context.Context, item models.FeedItem, sourceType string) Result {
	if e.gen == nil {
		return fallbackResult(item, ErrNoGenerator)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fallbackResult(item, err)
	}
	defer e.sem.Release(1)

	if err := e.pace(ctx); err != nil {
		return fallbackResult(item, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	text, err := e.gen.Generate(genCtx, BuildPrompt(item, sourceType))
	if err != nil {
		return fallbackResult(item, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackResult(item, ErrEmptyInsight)
	}

	return Result{Text: text}
}

// pace резервирует слот старта так, чтобы между стартами вызовов
// проходило не меньше Delay, и ждёт его наступления.
func (e *Engine) pace(ctx context.Context) error {
	if e.opts.Delay <= 0 {
		return nil
	}

	e.mu.Lock()
	now := e.now()
	start := e.next
	if start.Before(now) {
		start = now
	}
	e.next = start.Add(e.opts.Delay)
	e.mu.Unlock()

	wait := start.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildPrompt собирает запрос из фиксированной инструкции и полей элемента.
func BuildPrompt(item models.FeedItem, sourceType string) string {
	var b strings.Builder
	b.WriteString(insightInstruction)
	b.WriteString("\n\n")

	if sourceType != "" {
		b.WriteString("Source type: ")
		b.WriteString(sourceType)
		b.WriteString("\n")
	}

	b.WriteString("Title: ")
	b.WriteString(item.Title)
	b.WriteString("\n")

	if item.Excerpt != "" {
		b.WriteString("Excerpt: ")
		b.WriteString(item.Excerpt)
		b.WriteString("\n")
	}

	return b.String()
}

// Fallback строит детерминированную выдержку: текст описания, а при его
// отсутствии заголовок, обрезанные до InsightFallbackRunes рун.
func Fallback(item models.FeedItem) string {
	src := strings.TrimSpace(item.Excerpt)
	if src == "" {
		src = strings.TrimSpace(item.Title)
	}

	return feed.TruncateRunes(src, InsightFallbackRunes, "…")
}

func fallbackResult(item models.FeedItem, err error) Result {
	return Result{Text: Fallback(item), Fallback: true, Err: err}
}

func errText(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
