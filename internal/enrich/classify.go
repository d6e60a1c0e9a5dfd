package enrich

import (
	"strings"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// Classification — результат трёх чистых классификаторов.
type Classification struct {
	Category      string
	LocationLabel string
	Tags          []string
}

// Classifier применяет таблицы правил к тексту элемента.
// Значение неизменяемо и безопасно для конкурентного использования.
type Classifier struct {
	rules Rules
}

// NewClassifier проверяет таблицы и фиксирует их нормализованную копию.
func NewClassifier(r Rules) (*Classifier, error) {
	r = r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &Classifier{rules: r}, nil
}

// Classify классифицирует элемент. categoryHint используется, когда
// ни одно правило категории не сработало.
func (c *Classifier) Classify(item models.FeedItem, categoryHint string) Classification {
	text := strings.ToLower(item.Title + " " + item.Excerpt)

	return Classification{
		Category:      c.category(text, categoryHint),
		LocationLabel: c.location(text),
		Tags:          c.tags(text),
	}
}

func (c *Classifier) category(text, hint string) string {
	for _, rule := range c.rules.Categories {
		if containsAny(text, rule.Keywords) {
			return rule.Category
		}
	}

	if hint = strings.TrimSpace(hint); hint != "" {
		return hint
	}

	return c.rules.DefaultCategory
}

func (c *Classifier) location(text string) string {
	for _, p := range c.rules.Neighborhoods {
		if strings.Contains(text, p.Keyword) {
			return p.Label
		}
	}

	for _, p := range c.rules.Cities {
		if strings.Contains(text, p.Keyword) {
			return p.Label
		}
	}

	return c.rules.MetroDefault
}

func (c *Classifier) tags(text string) []string {
	out := make([]string, 0, c.rules.MaxTags)
	seen := make(map[string]struct{}, c.rules.MaxTags)

	for _, rule := range c.rules.Tags {
		if len(out) == c.rules.MaxTags {
			break
		}

		if _, dup := seen[rule.Tag]; dup {
			continue
		}

		if containsAny(text, rule.Keywords) {
			seen[rule.Tag] = struct{}{}
			out = append(out, rule.Tag)
		}
	}

	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}

	return false
}
