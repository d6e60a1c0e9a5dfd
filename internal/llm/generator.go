// llm — клиент OpenAI-совместимого API генерации текста.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

var (
	ErrNoChoices    = errors.New("llm returned no choices")
	ErrEmptyContent = errors.New("llm returned empty content")
)

// Config — параметры подключения.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// MaxRetries — повторы транспортного уровня SDK; ядро само не повторяет.
	MaxRetries int
}

// Generator реализует enrich.Generator поверх Chat Completions.
type Generator struct {
	client openai.Client
	model  string
}

// New создаёт генератор.
func New(cfg Config) *Generator {
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

// Generate отправляет один запрос и возвращает текст первого варианта.
// Таймаут задаёт вызывающий через ctx.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "llm.Generate"

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrNoChoices)
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyContent)
	}

	return text, nil
}
