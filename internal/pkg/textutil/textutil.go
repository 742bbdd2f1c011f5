// Package textutil provides text helpers shared by the chunking and
// retrieval pipeline.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// CharsPerToken is the character-to-token ratio used by EstimateTokens.
const CharsPerToken = 4

// EstimateTokens approximates the token count of s as ceil(runes/4).
// The heuristic tracks the ~4 chars/token average of English BPE
// vocabularies; it is deterministic, which keeps chunk boundaries
// reproducible across ingestions.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n == 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// NormalizeScores min-max normalizes scores into [0, 1]. A constant slice
// maps to all ones so that uniform relevance is not mistaken for none.
func NormalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// TruncateString truncates s to at most maxLen Unicode characters.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
