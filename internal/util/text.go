package util

import (
	"strings"
	"unicode"
)

// WordCount counts words as runs of letters, apostrophes and hyphens.
// Digits, emoji and punctuation separate words but never count as one.
func WordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) || (inWord && (r == '\'' || r == '-')) {
			if !inWord {
				n++
				inWord = true
			}
			continue
		}
		inWord = false
	}
	return n
}

// NormalizeTag trims s and strips any leading '#'.
func NormalizeTag(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "#")
}
