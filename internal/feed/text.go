package feed

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ExcerptMaxRunes — максимальная длина выдержки в рунах.
const ExcerptMaxRunes = 500

// entityReplacer декодирует фиксированный набор сущностей за один проход,
// поэтому "&amp;lt;" превращается в "&lt;", а не в "<".
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&#38;", "&",
	"&lt;", "<",
	"&#60;", "<",
	"&gt;", ">",
	"&#62;", ">",
	"&quot;", `"`,
	"&#34;", `"`,
	"&apos;", "'",
	"&#39;", "'",
	"&#039;", "'",
	"&#8216;", "‘",
	"&lsquo;", "‘",
	"&#8217;", "’",
	"&rsquo;", "’",
	"&#8220;", "“",
	"&ldquo;", "“",
	"&#8221;", "”",
	"&rdquo;", "”",
	"&#8211;", "–",
	"&ndash;", "–",
	"&#8212;", "—",
	"&mdash;", "—",
	"&nbsp;", " ",
	"&#160;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// cleanExcerpt превращает HTML-описание в плоский текст длиной не более
// ExcerptMaxRunes рун. Экранированная разметка сначала раскрывается,
// затем теги снимаются через goquery.
func cleanExcerpt(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := htmlToText(decodeEntities(validUTF8(raw)))

	return truncateRunes(text, ExcerptMaxRunes, "")
}

// htmlToText извлекает видимый текст. Блоки script/style отбрасываются.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpaces(fragment)
	}

	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6").AppendHtml(" ")

	return collapseSpaces(doc.Find("body").Text())
}

// truncateRunes обрезает s до max рун по границе слова. Если строка
// укоротилась, в конец дописывается suffix (его длина входит в max).
func truncateRunes(s string, max int, suffix string) string {
	if max <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= max {
		return s
	}

	limit := max - utf8.RuneCountInString(suffix)
	if limit <= 0 {
		return string([]rune(suffix)[:max])
	}

	runes := []rune(s)
	cut := limit
	for i := limit; i > limit/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}

	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + suffix
}

// TruncateRunes экспортирует обрезку для модулей обогащения.
func TruncateRunes(s string, max int, suffix string) string {
	return truncateRunes(s, max, suffix)
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// canonicalLink нормализует ссылку: убирает фрагмент и трекинговые параметры.
// Кандидаты перебираются по порядку: текст <link>, href атрибута <link>,
// затем <guid>, если он похож на http(s)-URL.
func canonicalLink(text, href, guid string) string {
	str := strings.TrimSpace(decodeEntities(text))

	if str == "" {
		str = strings.TrimSpace(decodeEntities(href))
	}

	if str == "" {
		if g := strings.TrimSpace(guid); strings.HasPrefix(g, "http://") || strings.HasPrefix(g, "https://") {
			str = decodeEntities(g)
		}
	}

	if str == "" {
		return ""
	}
	str = validUTF8(str)

	u, err := url.Parse(str)
	if err != nil {
		return str
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return str
	}

	u.Fragment = ""
	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || strings.HasSuffix(lk, "clid") || strings.HasPrefix(lk, "mc_") || lk == "igshid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

var dateLayouts = []string{
	time.RFC1123Z,                    // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC1123,                     // Mon, 02 Jan 2006 15:04:05 MST
	"Mon, 2 Jan 2006 15:04:05 -0700", // день без ведущего нуля
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 06 15:04:05 -0700",
	"Mon, 02 Jan 06 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parsePubDate пробует набор популярных форматов и возвращает UTC-время.
// Неразборная дата даёт нулевое время и ошибку; элемент при этом не теряется.
func parsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}

	var lastErr error
	for _, l := range dateLayouts {
		t, err := time.Parse(l, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, lastErr
}
