// Package readtime estimates how long a post takes to read.
package readtime

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/eringen/spacetraveling/richtext"
)

// WordsPerMinute is the assumed reading speed.
const WordsPerMinute = 200

// CountWords returns the number of words in text. A word is a maximal run of
// letters, digits and combining marks, so "não" and "co-op" count as one and
// two words respectively.
func CountWords(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	}))
}

// Minutes converts a word count to whole minutes, rounding up. Zero words
// is zero minutes.
func Minutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

// Estimate returns the reading time in minutes of the given bodies.
func Estimate(bodies ...richtext.Blocks) int {
	words := 0
	for _, body := range bodies {
		words += CountWords(richtext.AsText(body))
	}
	return Minutes(words)
}

// Format renders minutes the way post headers show them, e.g. "4 min".
func Format(minutes int) string {
	return strconv.Itoa(minutes) + " min"
}
