// filter содержит предикаты релевантности: географический allow-list
// и окно свежести. Оба фильтра чистые и дешёвые, поэтому применяются
// до дедупликации и обогащения.
package filter

import (
	"errors"
	"strings"
	"time"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// ErrEmptyAllowList — после нормализации в allow-list не осталось ни одного ключевого слова.
var ErrEmptyAllowList = errors.New("geo allow-list is empty")

// Geo пропускает элементы, в заголовке или выдержке которых встречается
// хотя бы одно ключевое слово. Сравнение регистронезависимое, по подстроке.
type Geo struct {
	keywords []string
}

// NewGeo нормализует ключевые слова. Пустой allow-list недопустим:
// фильтр, отвергающий всё, считается ошибкой конфигурации.
func NewGeo(keywords []string) (*Geo, error) {
	norm := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			norm = append(norm, kw)
		}
	}

	if len(norm) == 0 {
		return nil, ErrEmptyAllowList
	}

	return &Geo{keywords: norm}, nil
}

// Match сообщает, относится ли элемент к целевому региону.
func (g *Geo) Match(item models.FeedItem) bool {
	text := strings.ToLower(item.Title + " " + item.Excerpt)

	for _, kw := range g.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}

	return false
}

// Recency пропускает элементы, опубликованные не раньше now-window.
// Элементы с неизвестной датой публикации отвергаются.
type Recency struct {
	cutoff time.Time
}

// NewRecency фиксирует границу окна относительно now.
func NewRecency(window time.Duration, now time.Time) Recency {
	return Recency{cutoff: now.Add(-window)}
}

func (r Recency) Match(item models.FeedItem) bool {
	if item.PublishedAt.IsZero() {
		return false
	}

	return !item.PublishedAt.Before(r.cutoff)
}
