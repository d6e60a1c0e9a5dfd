package handlers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// md без unsafe-режима: сырой HTML из ленты или от LLM заменяется комментарием.
var md = goldmark.New()

// renderPreview собирает markdown карточки и конвертирует его в HTML.
func renderPreview(rec *models.ContentRecord) ([]byte, error) {
	const op = "handlers.preview.renderPreview"

	var src strings.Builder
	fmt.Fprintf(&src, "# %s\n\n", escapeInline(rec.Title))
	fmt.Fprintf(&src, "*%s · %s*\n\n", escapeInline(rec.Category), escapeInline(rec.LocationLabel))

	if rec.MediaRef != "" {
		fmt.Fprintf(&src, "![](<%s>)\n\n", rec.MediaRef)
	}

	src.WriteString(rec.InsightText)
	src.WriteString("\n\n")

	if len(rec.Tags) > 0 {
		fmt.Fprintf(&src, "Tags: %s\n\n", escapeInline(strings.Join(rec.Tags, ", ")))
	}

	fmt.Fprintf(&src, "[%s](<%s>)\n", escapeInline(rec.SourceName), rec.SourceLink)

	var buf bytes.Buffer
	if err := md.Convert([]byte(src.String()), &buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "#", `\#`, "`", "\\`", "<", `\<`,
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}
