// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// A hyphen, optional horizontal whitespace, one or two newlines and the
	// continuing fragment. The newline moves after the rejoined word.
	hyphenNewline = regexp.MustCompile(`-[^\S\n]?\n{1,2}(\w+ *)`)
	// A hyphen followed by one or two spaces inside a line.
	hyphenSpace = regexp.MustCompile(`(\w)- {1,2}(\w+)`)

	whitespaceRun = regexp.MustCompile(`\s+`)
	edgeNumbers   = regexp.MustCompile(`^[\d\s]+|[\d\s]+$`)
	furnitureLead = regexp.MustCompile(`^(r\S*|copyright)\s+\d{4}\b`)
)

// RepairHyphenation rejoins words broken across lines or paragraphs by a
// trailing hyphen, and words split by a hyphen and stray spaces.
func RepairHyphenation(text string) string {
	text = hyphenNewline.ReplaceAllString(text, "$1\n")
	return hyphenSpace.ReplaceAllString(text, "$1$2")
}

// JoinLines turns a paragraph into a single logical line.
func JoinLines(para string) string {
	return strings.ReplaceAll(para, "\n", " ")
}

// CollapseWhitespace replaces every whitespace run with one space and trims
// both ends.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// IsFurniture reports whether para looks like a page header or footer: it
// is shorter than maxLen characters and starts with a copyright glyph, or
// with a token beginning with "r" (or "copyright") followed by a year.
func IsFurniture(para string, maxLen int) bool {
	para = strings.TrimSpace(para)
	if utf8.RuneCountInString(para) >= maxLen {
		return false
	}
	if strings.HasPrefix(para, "©") {
		return true
	}
	return furnitureLead.MatchString(strings.ToLower(para))
}

// StripPageNumbers removes leading and trailing runs of digits, usually
// page numbers, together with the whitespace around them.
func StripPageNumbers(text string) string {
	return edgeNumbers.ReplaceAllString(text, "")
}

// RemoveCID deletes every "(cid:<digits>)" placeholder.
func RemoveCID(text string) string {
	return cidPattern.ReplaceAllString(text, "")
}

// ligatures are the Latin presentation forms U+FB00 to U+FB06 (ff, fi, fl,
// ffi, ffl, long st, st).
var ligatures = runes.In(&unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0xFB00, Hi: 0xFB06, Stride: 1}},
})

// Normalize expands typographic ligatures and composes the text to NFC.
// Only ligatures get compatibility decomposition, so spacing accents are
// still intact for FoldAccents.
func Normalize(text string) string {
	t := transform.Chain(runes.If(ligatures, norm.NFKC, nil), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return norm.NFC.String(text)
	}
	return out
}

// accentFolds maps a base letter followed by a stray spacing accent to the
// precomposed letter. Built once, never modified.
var accentFolds = strings.NewReplacer(
	// acute ´
	"a´", "á", "e´", "é", "i´", "í", "o´", "ó", "u´", "ú", "n´", "ń",
	"A´", "Á", "E´", "É", "I´", "Í", "O´", "Ó", "U´", "Ú", "N´", "Ń",
	// diaeresis ¨
	"a¨", "ä", "e¨", "ë", "i¨", "ï", "o¨", "ö", "u¨", "ü",
	"A¨", "Ä", "E¨", "Ë", "I¨", "Ï", "O¨", "Ö", "U¨", "Ü",
	// circumflex ˆ
	"aˆ", "â", "eˆ", "ê", "iˆ", "î", "oˆ", "ô", "uˆ", "û",
	"Aˆ", "Â", "Eˆ", "Ê", "Iˆ", "Î", "Oˆ", "Ô", "Uˆ", "Û",
	// grave `
	"a`", "à", "e`", "è", "i`", "ì", "o`", "ò", "u`", "ù", "n`", "ǹ",
	"A`", "À", "E`", "È", "I`", "Ì", "O`", "Ò", "U`", "Ù", "N`", "Ǹ",
	// tilde ˜
	"a˜", "ã", "o˜", "õ", "n˜", "ñ", "i˜", "ĩ", "u˜", "ũ", "e˜", "ẽ",
	"A˜", "Ã", "O˜", "Õ", "N˜", "Ñ", "I˜", "Ĩ", "U˜", "Ũ", "E˜", "Ẽ",
)

// FoldAccents merges a base letter and a following stray spacing accent
// into the precomposed character, e.g. "a´" into "á".
func FoldAccents(text string) string {
	return accentFolds.Replace(text)
}

// strayMarks are combining diacritics, spacing modifier letters and the
// spacing acute and diaeresis.
var strayMarks = runes.Remove(runes.Predicate(func(r rune) bool {
	return (r >= 0x0300 && r <= 0x036F) ||
		(r >= 0x02B0 && r <= 0x02FF) ||
		r == '´' || r == '¨'
}))

// StripMarks removes combining diacritics and spacing modifiers left behind
// by the accent fold.
func StripMarks(text string) string {
	out, _, err := transform.String(strayMarks, text)
	if err != nil {
		return text
	}
	return out
}

// RepairParagraph runs the final repair chain on one paragraph.
func RepairParagraph(para string) string {
	para = StripPageNumbers(para)
	para = RemoveCID(para)
	para = Normalize(para)
	para = FoldAccents(para)
	para = StripMarks(para)
	return StripPageNumbers(CollapseWhitespace(para))
}
