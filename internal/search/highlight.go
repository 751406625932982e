package search

import (
	"html"
	"strings"
	"unicode"
)

// Highlight markers wrapped around matched keyword occurrences. The
// surrounding text is HTML-escaped so the markers are the only markup in the
// output.
const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// indexFold returns the rune offset of the first case-insensitive occurrence
// of keyword in text, or -1.
func indexFold(text, keyword []rune) int {
	if len(keyword) == 0 || len(keyword) > len(text) {
		return -1
	}
	for i := 0; i+len(keyword) <= len(text); i++ {
		match := true
		for j := range keyword {
			if text[i+j] != keyword[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// extractSnippet cuts a window of text around the first case-insensitive
// occurrence of the keyword, capped at limit runes. Without an occurrence it
// returns the leading limit runes, so a hit found through a phonetic or
// n-gram form still yields a snippet.
func extractSnippet(text, keyword string, window, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) == 0 {
		return ""
	}

	pos := indexFold(foldRunes(text), foldRunes(keyword))
	if pos < 0 {
		if len(runes) > limit {
			return string(runes[:limit])
		}
		return text
	}

	kwLen := len([]rune(keyword))
	lead := window
	if lead > limit-kwLen {
		// A tight limit must still leave room for the keyword itself.
		lead = limit - kwLen
		if lead < 0 {
			lead = 0
		}
	}
	start := pos - lead
	if start < 0 {
		start = 0
	}
	end := pos + kwLen + window
	if end > len(runes) {
		end = len(runes)
	}
	if end-start > limit {
		end = start + limit
	}
	return string(runes[start:end])
}

// markOccurrences HTML-escapes text and wraps every case-insensitive
// occurrence of the keyword in highlight markers. An empty keyword escapes
// without marking.
func markOccurrences(text, keyword string) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	kw := foldRunes(keyword)
	if len(kw) == 0 {
		return html.EscapeString(text)
	}

	folded := foldRunes(text)
	var b strings.Builder
	i := 0
	for i < len(runes) {
		rel := indexFold(folded[i:], kw)
		if rel < 0 {
			b.WriteString(html.EscapeString(string(runes[i:])))
			break
		}
		at := i + rel
		b.WriteString(html.EscapeString(string(runes[i:at])))
		b.WriteString(markOpen)
		b.WriteString(html.EscapeString(string(runes[at : at+len(kw)])))
		b.WriteString(markClose)
		i = at + len(kw)
	}
	return b.String()
}

// highlightSnippet combines both steps for the primary-store fallback path:
// snippet first, markers second.
func highlightSnippet(text, keyword string, window, limit int) (snippet, highlighted string) {
	snippet = extractSnippet(text, keyword, window, limit)
	return snippet, markOccurrences(snippet, keyword)
}
