package feed

import (
	"bytes"
	"regexp"
	"strings"
)

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// scanner последовательно вырезает из документа блоки <item>…</item>.
// Поиск ведётся по lower (ASCII-нижний регистр той же длины), а байты
// отдаются из src, поэтому индексы двух срезов совпадают.
type scanner struct {
	src   []byte
	lower []byte
	pos   int
}

// next возвращает следующий блок элемента вместе с его нижнерегистровой копией.
// Незакрытый элемент завершает сканирование: хвост документа не содержит
// ни одного разборного <item>. Если перед </item> встретилось повторное
// открытие, берётся последнее, а обрамляющий «сломанный» префикс отбрасывается.
func (s *scanner) next() ([]byte, []byte, bool) {
	start := indexOpenTag(s.lower, s.pos, "item")
	if start < 0 {
		return nil, nil, false
	}

	rel := bytes.Index(s.lower[start:], []byte("</item>"))
	if rel < 0 {
		s.pos = len(s.lower)
		return nil, nil, false
	}
	end := start + rel

	for {
		inner := indexOpenTag(s.lower[:end], start+1, "item")
		if inner < 0 {
			break
		}
		start = inner
	}

	s.pos = end + len("</item>")

	return s.src[start:end], s.lower[start:end], true
}

// element — поля одного блока <item>.
type element struct {
	src   []byte
	lower []byte
}

// fieldValue — текстовое содержимое одного вхождения тега.
type fieldValue struct {
	text    string
	wrapped bool
}

// pick возвращает значение тега. Вхождение в CDATA-обёртке предпочтительнее
// экранированного текста; среди равных берётся первое непустое.
func (e element) pick(tag string) string {
	var plain string
	for _, v := range e.values(tag) {
		if strings.TrimSpace(v.text) == "" {
			continue
		}

		if v.wrapped {
			return v.text
		}

		if plain == "" {
			plain = v.text
		}
	}

	return plain
}

// values возвращает все вхождения тега в порядке появления.
// Самозакрывающиеся теги дают пустое значение.
func (e element) values(tag string) []fieldValue {
	var out []fieldValue

	closeTag := []byte("</" + tag + ">")
	pos := 0
	for {
		start := indexOpenTag(e.lower, pos, tag)
		if start < 0 {
			return out
		}

		gt := bytes.IndexByte(e.lower[start:], '>')
		if gt < 0 {
			return out
		}
		openEnd := start + gt + 1

		if e.lower[openEnd-2] == '/' {
			out = append(out, fieldValue{})
			pos = openEnd
			continue
		}

		rel := bytes.Index(e.lower[openEnd:], closeTag)
		if rel < 0 {
			return out
		}
		closeAt := openEnd + rel

		out = append(out, unwrap(string(e.src[openEnd:closeAt])))
		pos = closeAt + len(closeTag)
	}
}

var reAttr = regexp.MustCompile(`(?is)\s([a-z:_-]+)\s*=\s*["']([^"']*)["']`)

// attr возвращает значение атрибута name у первого открывающего тега tag,
// где атрибут непуст. Нужен для Atom-стиля <link href="…"/>.
func (e element) attr(tag, name string) string {
	name = strings.ToLower(name)

	pos := 0
	for {
		start := indexOpenTag(e.lower, pos, tag)
		if start < 0 {
			return ""
		}

		gt := bytes.IndexByte(e.lower[start:], '>')
		if gt < 0 {
			return ""
		}
		openTag := string(e.src[start : start+gt+1])
		pos = start + gt + 1

		for _, m := range reAttr.FindAllStringSubmatch(openTag, -1) {
			if strings.ToLower(m[1]) == name && strings.TrimSpace(m[2]) != "" {
				return strings.TrimSpace(m[2])
			}
		}
	}
}

// unwrap снимает CDATA-обёртки. Несколько секций подряд склеиваются,
// текст вне секций сохраняется как есть.
func unwrap(raw string) fieldValue {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, cdataOpen) {
		return fieldValue{text: raw}
	}

	var b strings.Builder
	rest := trimmed
	for {
		i := strings.Index(rest, cdataOpen)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i+len(cdataOpen):]

		j := strings.Index(rest, cdataClose)
		if j < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:j])
		rest = rest[j+len(cdataClose):]
	}

	return fieldValue{text: b.String(), wrapped: true}
}

// indexOpenTag ищет "<tag" начиная с from, за которым следует '>', '/'
// или пробельный символ. Так "<item" не совпадает с "<itemref".
func indexOpenTag(lower []byte, from int, tag string) int {
	needle := []byte("<" + tag)

	for from <= len(lower) {
		rel := bytes.Index(lower[from:], needle)
		if rel < 0 {
			return -1
		}

		at := from + rel
		next := at + len(needle)
		if next >= len(lower) {
			return -1
		}

		switch lower[next] {
		case '>', '/', ' ', '\t', '\n', '\r':
			return at
		}

		from = next
	}

	return -1
}

// asciiLower переводит в нижний регистр только A-Z, сохраняя длину среза.
func asciiLower(src []byte) []byte {
	out := make([]byte, len(src))
	for i, c := range src {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}

	return out
}
