package fuzzy

import (
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a        string
		b        string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"intro", "intro", 0},
		{"INTRO", "intro", 0}, // case insensitive
		{"kitten", "sitting", 3},
		{"weekly", "weekli", 1},
		{"jingle", "jingel", 1}, // transposition counts once
		{"brief", "breif", 1},
		{"intro", "outro", 2},
	}

	for _, tt := range tests {
		result := Distance(tt.a, tt.b)
		if result != tt.expected {
			t.Errorf("Distance(%q, %q) = %d; want %d", tt.a, tt.b, result, tt.expected)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a           string
		b           string
		minExpected float64
	}{
		{"layout", "layout", 1.0},
		{"LAYOUT", "layout", 1.0},
		{"weekly", "weekli", 0.8},
		{"hello", "world", 0.0},
		{"", "", 1.0},
	}

	for _, tt := range tests {
		result := Similarity(tt.a, tt.b)
		if result < tt.minExpected {
			t.Errorf("Similarity(%q, %q) = %f; want >= %f", tt.a, tt.b, result, tt.minExpected)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		text     string
		query    string
		expected bool
	}{
		{"Weekly Interview Layout", "weekly", true},
		{"Weekly Interview Layout", "WEEKLY", true},
		{"Weekly Interview Layout", "weekli", true}, // typo
		{"Weekly Interview Layout", "intervew", true},
		{"Morning Brief", "brief", true},
		{"Morning Brief", "breif", true}, // transposed
		{"Morning Brief", "xyz", false},
		{"", "query", false},
		{"text", "", false},
	}

	for _, tt := range tests {
		result := Matches(tt.text, tt.query)
		if result != tt.expected {
			t.Errorf("Matches(%q, %q) = %v; want %v", tt.text, tt.query, result, tt.expected)
		}
	}
}

func TestScoreOrdering(t *testing.T) {
	query := "weekly"
	best := Score("Weekly Layout", query)
	middle := Score("The Weekly Show", query)
	worst := Score("Completely Unrelated", query)

	if best < middle {
		t.Errorf("prefix score %f should be >= substring score %f", best, middle)
	}
	if middle <= worst {
		t.Errorf("substring score %f should beat unrelated score %f", middle, worst)
	}
	if worst > 0.5 {
		t.Errorf("unrelated score = %f, want low", worst)
	}
}
