// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var cidPattern = regexp.MustCompile(`\(cid:\d+\)`)

// CIDPercentage returns 8k/L for text holding k "(cid:<digits>)"
// placeholders and L characters; 0 for empty text.
func CIDPercentage(text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	k := len(cidPattern.FindAllStringIndex(text, -1))
	return float64(8*k) / float64(n)
}

// MeanLineLength returns the mean character length of the non-empty lines
// of text, or 0 when there are none.
func MeanLineLength(text string) float64 {
	var total, lines int
	for line := range strings.SplitSeq(text, "\n") {
		n := utf8.RuneCountInString(line)
		if n == 0 {
			continue
		}
		total += n
		lines++
	}
	if lines == 0 {
		return 0
	}
	return float64(total) / float64(lines)
}

// AverageWordLength returns totalChars / (wordBreaks + 1), where word
// breaks are the whitespace runs separating tokens.
func AverageWordLength(text string) float64 {
	breaks := max(len(strings.Fields(text))-1, 0)
	return float64(utf8.RuneCountInString(text)) / float64(breaks+1)
}

// LetterDensity returns the fraction of characters in text that are ASCII
// letters, or 0 for empty text.
func LetterDensity(text string) float64 {
	var letters, total int
	for _, r := range text {
		total++
		if r < utf8.RuneSelf && unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}
