package feed

import (
	"bytes"
	"iter"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// parseFallback разбирает документы без RSS-элементов (Atom, JSON Feed, RDF).
// Неразборный документ даёт пустую последовательность.
func parseFallback(raw []byte) iter.Seq[models.FeedItem] {
	return func(yield func(models.FeedItem) bool) {
		parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
		if err != nil {
			return
		}

		for _, it := range parsed.Items {
			if it == nil {
				continue
			}

			title := collapseSpaces(validUTF8(it.Title))
			link := canonicalLink(it.Link, "", it.GUID)
			if title == "" || link == "" {
				continue
			}

			excerpt := it.Description
			if strings.TrimSpace(excerpt) == "" {
				excerpt = it.Content
			}

			if !yield(models.FeedItem{
				Title:       title,
				Link:        link,
				PublishedAt: fallbackDate(it),
				Excerpt:     cleanExcerpt(excerpt),
			}) {
				return
			}
		}
	}
}

func fallbackDate(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC()
	}

	return time.Time{}
}
