// feed превращает сырые байты RSS-ленты в последовательность
// нормализованных models.FeedItem и загружает ленты по HTTP.
//
// Парсер толерантен к битой разметке: элемент без закрывающего тега
// или с вложенным началом просто пропускается, остальные разбираются.
// Если RSS-элементов <item> в документе нет вовсе, разбор делегируется
// gofeed (Atom, JSON Feed).
package feed

import (
	"iter"
	"strings"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// Parse возвращает ленивую конечную последовательность элементов ленты.
// Каждый элемент разбирается только тогда, когда потребитель запрашивает
// следующий, поэтому ранняя остановка range не тратит работу на хвост ленты.
//
// Элементы без заголовка или ссылки отбрасываются молча.
// Функция не имеет побочных эффектов.
func Parse(raw []byte) iter.Seq[models.FeedItem] {
	return func(yield func(models.FeedItem) bool) {
		lower := asciiLower(raw)

		if indexOpenTag(lower, 0, "item") < 0 {
			for item := range parseFallback(raw) {
				if !yield(item) {
					return
				}
			}
			return
		}

		sc := scanner{src: raw, lower: lower}
		for {
			block, blockLower, ok := sc.next()
			if !ok {
				return
			}

			item, ok := parseItem(block, blockLower)
			if !ok {
				continue
			}

			if !yield(item) {
				return
			}
		}
	}
}

// parseItem собирает FeedItem из байтов одного <item>.
func parseItem(block, lower []byte) (models.FeedItem, bool) {
	el := element{src: block, lower: lower}

	title := cleanTitle(el.pick("title"))
	link := canonicalLink(el.pick("link"), el.attr("link", "href"), el.pick("guid"))

	if title == "" || link == "" {
		return models.FeedItem{}, false
	}

	pub, _ := parsePubDate(firstNonEmpty(
		el.pick("pubdate"),
		el.pick("dc:date"),
		el.pick("published"),
		el.pick("updated"),
	))

	excerpt := cleanExcerpt(firstNonEmpty(
		el.pick("description"),
		el.pick("summary"),
		el.pick("content:encoded"),
	))

	return models.FeedItem{
		Title:       title,
		Link:        link,
		PublishedAt: pub,
		Excerpt:     excerpt,
	}, true
}

// cleanTitle декодирует фиксированный набор сущностей и схлопывает пробелы.
// Невалидные UTF-8 последовательности заменяются на U+FFFD.
func cleanTitle(raw string) string {
	return collapseSpaces(validUTF8(decodeEntities(raw)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
