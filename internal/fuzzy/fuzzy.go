// Package fuzzy scores free-text input against known candidate names on a
// 0..100 scale and ranks candidates for disambiguation prompts.
package fuzzy

import (
	"math"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const (
	// SuggestThreshold is the minimum score for a candidate to be offered
	// to the user as a suggestion.
	SuggestThreshold = 90
	// ExactThreshold resolves a candidate silently without confirmation.
	ExactThreshold = 100
)

// Match pairs a candidate with its similarity score.
type Match struct {
	Candidate string
	Score     int
}

// Score returns a case-insensitive similarity between text and candidate,
// normalized to 0..100. Identical strings always score 100.
func Score(text, candidate string) int {
	a := strings.ToLower(strings.TrimSpace(text))
	b := strings.ToLower(strings.TrimSpace(candidate))
	if a == b {
		return 100
	}
	lev := metrics.NewLevenshtein()
	s := int(math.Round(strutil.Similarity(a, b, lev) * 100))
	// Non-identical strings never report an exact score.
	if s >= 100 {
		s = 99
	}
	return s
}

// Rank returns the candidates scoring at or above threshold, best first.
// Candidates with equal scores keep their input order.
func Rank(text string, candidates []string, threshold int) []Match {
	var out []Match
	for _, c := range candidates {
		if s := Score(text, c); s >= threshold {
			out = append(out, Match{Candidate: c, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best returns the highest scoring candidate and its score, or an empty
// match when candidates is empty.
func Best(text string, candidates []string) Match {
	best := Match{Score: -1}
	for _, c := range candidates {
		if s := Score(text, c); s > best.Score {
			best = Match{Candidate: c, Score: s}
		}
	}
	if best.Score < 0 {
		return Match{}
	}
	return best
}
