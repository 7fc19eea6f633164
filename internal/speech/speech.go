// Package speech counts spoken characters in narration text.
package speech

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CharCount returns the number of spoken characters in text: letters and digits after NFC
// composition. Whitespace, punctuation, symbols and combining marks do not count, so a
// Hangul syllable counts once whether it arrived precomposed or as conjoining jamo.
func CharCount(text string) int {
	count := 0

	for _, r := range norm.NFC.String(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			count++
		}
	}

	return count
}
