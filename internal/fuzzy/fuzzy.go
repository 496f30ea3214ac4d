// Package fuzzy provides typo-tolerant matching for list filters. Queries are
// compared case-insensitively, word by word, using edit distance.
package fuzzy

import (
	"strings"
	"unicode"
)

// Distance returns the edit distance between two strings,
// case-insensitively. Adjacent transpositions count as a single edit, so
// common typos like "breif" stay close to the intended word.
func Distance(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prevPrev := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				curr[j] = min(curr[j], prevPrev[j-2]+1)
			}
		}
		prevPrev, prev, curr = prev, curr, prevPrev
	}

	return prev[len(b)]
}

// Similarity maps edit distance to a 0..1 score; 1 means identical.
func Similarity(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(a, b))/float64(maxLen)
}

// Matches reports whether query matches text, tolerating typos. Exact
// substring matches always win; otherwise individual words are compared with
// a threshold that tightens for short queries.
func Matches(text, query string) bool {
	if query == "" {
		return false
	}

	textLower := strings.ToLower(text)
	queryLower := strings.ToLower(query)

	if strings.Contains(textLower, queryLower) {
		return true
	}

	textWords := splitWords(textLower)
	queryWords := splitWords(queryLower)
	if len(queryWords) == 0 {
		return false
	}

	matched := 0
	for _, qw := range queryWords {
		for _, tw := range textWords {
			if Similarity(tw, qw) >= thresholdFor(qw) {
				matched++
				break
			}
		}
	}
	return float64(matched)/float64(len(queryWords)) >= 0.6
}

// Score ranks how well text matches query; higher is better. Prefix matches
// beat substring matches, which beat fuzzy word matches.
func Score(text, query string) float64 {
	textLower := strings.ToLower(text)
	queryLower := strings.ToLower(query)

	if strings.HasPrefix(textLower, queryLower) {
		return 1.0
	}
	if strings.Contains(textLower, queryLower) {
		return 0.95
	}

	textWords := splitWords(textLower)
	queryWords := splitWords(queryLower)
	if len(queryWords) == 0 {
		return 0.0
	}

	var total float64
	for _, qw := range queryWords {
		var best float64
		for _, tw := range textWords {
			if sim := Similarity(tw, qw); sim > best {
				best = sim
			}
		}
		total += best
	}
	return (total / float64(len(queryWords))) * 0.9
}

// thresholdFor loosens the match threshold for longer query words, which can
// absorb more typos without becoming a different word.
func thresholdFor(word string) float64 {
	switch {
	case len(word) <= 3:
		return 0.8
	case len(word) <= 5:
		return 0.7
	default:
		return 0.65
	}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
