package ui

import (
	"slices"
	"strings"
)

// MaxSuggestionDistance is the largest edit distance offered as a suggestion
const MaxSuggestionDistance = 3

// MaxSuggestions caps the number of suggestions returned by Suggest
const MaxSuggestions = 3

// Suggest returns the candidates closest to target, case-insensitively,
// nearest first. Candidates at equal distance keep their input order.
//
//	Suggest("taks", []string{"tasks", "employees"}) // ["tasks"]
func Suggest(target string, candidates []string) []string {
	type match struct {
		value    string
		distance int
	}

	target = strings.ToLower(target)
	var matches []match
	for _, candidate := range candidates {
		d := LevenshteinDistance(target, strings.ToLower(candidate))
		if d <= MaxSuggestionDistance {
			matches = append(matches, match{candidate, d})
		}
	}

	slices.SortStableFunc(matches, func(a, b match) int {
		return a.distance - b.distance
	})

	out := make([]string, 0, min(len(matches), MaxSuggestions))
	for _, m := range matches[:min(len(matches), MaxSuggestions)] {
		out = append(out, m.value)
	}
	return out
}

// LevenshteinDistance returns the number of single-byte insertions,
// deletions and substitutions turning s1 into s2
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// two rows of the edit matrix
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
