package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const snippetMaxRunes = 120

// DeriveSnippet builds a short preview from the plaintext body, falling
// back to text extracted from the HTML body when no plaintext exists.
func DeriveSnippet(bodyText, bodyHTML string) string {
	text := strings.TrimSpace(bodyText)
	if text == "" && bodyHTML != "" {
		text = HTMLToText(bodyHTML)
	}
	return TruncateAtRune(collapseWhitespace(text), snippetMaxRunes)
}

// HTMLToText extracts visible text from an HTML document. Script and
// style contents are stripped.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}

// TruncateAtRune cuts s to at most max runes without splitting a rune.
func TruncateAtRune(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
