package search

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

var pinyinArgs = pinyin.NewArgs()

// Transliterate converts Han characters to full-syllable pinyin, leaving
// other text untouched. Each syllable becomes its own token so a phrase
// query over the transliterated form matches both CJK keywords and keywords
// typed as pinyin on a Latin keyboard.
func Transliterate(s string) string {
	if s == "" {
		return ""
	}

	var tokens []string
	var run []rune
	flush := func() {
		if len(run) > 0 {
			if tok := strings.TrimSpace(string(run)); tok != "" {
				tokens = append(tokens, tok)
			}
			run = run[:0]
		}
	}

	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			flush()
			if syllables := pinyin.SinglePinyin(r, pinyinArgs); len(syllables) > 0 {
				tokens = append(tokens, syllables[0])
			} else {
				tokens = append(tokens, string(r))
			}
			continue
		}
		run = append(run, r)
	}
	flush()

	return strings.Join(tokens, " ")
}

// ContainsCJK reports whether the string contains any CJK script rune. Used
// to decide whether the relaxed n-gram query layer applies.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

// cjkGrams produces the lowercased 2- and 3-rune grams of the keyword,
// mirroring the n-gram token filter applied to the *_zh sub-fields at index
// time.
func cjkGrams(keyword string) []string {
	runes := []rune(strings.ToLower(keyword))
	var grams []string
	for size := 2; size <= 3; size++ {
		for i := 0; i+size <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+size]))
		}
	}
	return grams
}

// gramMinShould scales the required number of matching grams with keyword
// length: short keywords must match nearly everything, longer ones tolerate
// noise.
func gramMinShould(total int) int {
	if total <= 0 {
		return 0
	}
	var fraction float64
	switch {
	case total <= 3:
		fraction = 1.0
	case total <= 8:
		fraction = 0.7
	default:
		fraction = 0.5
	}
	min := int(fraction * float64(total))
	if min < 1 {
		min = 1
	}
	return min
}
