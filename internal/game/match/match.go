// Package match validates free-text answers against canonical track metadata.
package match

import (
	"math"
	"strings"
	"unicode"
)

// DefaultThreshold is the similarity score (0-100) at or above which two
// strings are considered a match.
const DefaultThreshold = 80

// Normalize lowercases, trims, strips one leading "the " prefix, removes all
// non-alphanumeric-non-space characters, and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "the ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity scores two strings 0-100 after normalization.
//
// Equal normalized strings score 100; otherwise the score is the normalized
// Levenshtein distance scaled against the longer string.
func Similarity(a, b string) int {
	normA := Normalize(a)
	normB := Normalize(b)
	if normA == normB {
		return 100
	}

	maxLen := max(len([]rune(normA)), len([]rune(normB)))
	if maxLen == 0 {
		return 100
	}
	distance := levenshtein(normA, normB)
	return int(math.Round(float64(maxLen-distance) / float64(maxLen) * 100))
}

// IsMatch reports whether a submitted answer matches the canonical one at the
// default threshold.
func IsMatch(submitted, correct string) bool {
	return IsMatchThreshold(submitted, correct, DefaultThreshold)
}

// IsMatchThreshold reports whether a submitted answer matches the canonical
// one at the given similarity threshold.
//
// Containment counts as a match so partial-but-unambiguous answers
// ("the beatles" vs "beatles") pass even when edit distance alone would not
// clear the threshold for short strings.
func IsMatchThreshold(submitted, correct string, threshold int) bool {
	normSubmitted := Normalize(submitted)
	normCorrect := Normalize(correct)
	if normSubmitted == "" || normCorrect == "" {
		return normSubmitted == normCorrect
	}
	if normSubmitted == normCorrect {
		return true
	}
	if strings.Contains(normSubmitted, normCorrect) || strings.Contains(normCorrect, normSubmitted) {
		return true
	}
	return Similarity(submitted, correct) >= threshold
}

// levenshtein computes the edit distance between two strings in runes.
func levenshtein(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)
	if len(runesA) == 0 {
		return len(runesB)
	}
	if len(runesB) == 0 {
		return len(runesA)
	}

	prev := make([]int, len(runesB)+1)
	curr := make([]int, len(runesB)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(runesA); i++ {
		curr[0] = i
		for j := 1; j <= len(runesB); j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(runesB)]
}
