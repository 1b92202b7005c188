package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText reduces possibly-HTML post content to its visible text with
// collapsed whitespace. Scrapers deliver a mix of plain text and markup.
func PlainText(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.Contains(trimmed, "<") {
		return strings.Join(strings.Fields(trimmed), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return strings.Join(strings.Fields(trimmed), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// WordCount counts whitespace-separated words in the visible text.
func WordCount(content string) int {
	text := PlainText(content)
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}
