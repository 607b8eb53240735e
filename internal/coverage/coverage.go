// Package coverage estimates how much of the source material's vocabulary
// appears in generated notes.
//
// The score is a cheap recall proxy based on token overlap. It cannot see
// paraphrases and it is advisory only: it drives a UI warning and never gates
// persistence or continuation. Scripts that are not whitespace delimited (CJK,
// for example) tokenize to nothing and therefore score 100.
package coverage

import (
	"math"
	"sort"
	"strings"
)

const (
	// minTokenLen is exclusive: only tokens longer than this count.
	minTokenLen = 4

	// DefaultWarnThreshold is the score below which callers should warn.
	DefaultWarnThreshold = 60

	maxMissingTerms = 20
)

// Report is the detailed result of comparing source text with notes.
type Report struct {
	Score        int      `json:"coverage" yaml:"coverage"`
	SourceTerms  int      `json:"sourceTerms" yaml:"sourceTerms"`
	MatchedTerms int      `json:"matchedTerms" yaml:"matchedTerms"`
	Missing      []string `json:"missing" yaml:"missing"`
	Warn         bool     `json:"warn" yaml:"warn"`
}

// Estimate returns an integer in [0, 100]: the rounded percentage of unique
// qualifying source tokens that also appear in notes. A source with no
// qualifying tokens scores 100.
func Estimate(source, notes string) int {
	sourceTerms := termCounts(source)
	if len(sourceTerms) == 0 {
		return 100
	}
	noteTerms := termCounts(notes)
	return score(matched(sourceTerms, noteTerms), len(sourceTerms))
}

// Analyze scores notes against source like Estimate and also reports which
// frequent source terms are missing. Warn is set when the score falls below
// threshold.
func Analyze(source, notes string, threshold int) Report {
	sourceTerms := termCounts(source)
	if len(sourceTerms) == 0 {
		return Report{Score: 100, Missing: []string{}, Warn: 100 < threshold}
	}
	noteTerms := termCounts(notes)

	hit := matched(sourceTerms, noteTerms)
	s := score(hit, len(sourceTerms))

	missing := make([]string, 0, len(sourceTerms)-hit)
	for term := range sourceTerms {
		if _, ok := noteTerms[term]; !ok {
			missing = append(missing, term)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		ci, cj := sourceTerms[missing[i]], sourceTerms[missing[j]]
		if ci != cj {
			return ci > cj
		}
		return missing[i] < missing[j]
	})
	if len(missing) > maxMissingTerms {
		missing = missing[:maxMissingTerms]
	}

	return Report{
		Score:        s,
		SourceTerms:  len(sourceTerms),
		MatchedTerms: hit,
		Missing:      missing,
		Warn:         s < threshold,
	}
}

func matched(source, notes map[string]int) int {
	n := 0
	for term := range source {
		if _, ok := notes[term]; ok {
			n++
		}
	}
	return n
}

func score(hit, total int) int {
	return int(math.Round(100 * float64(hit) / float64(total)))
}

// termCounts lower-cases text, turns everything except ASCII letters and
// digits into separators and counts the tokens longer than minTokenLen.
func termCounts(text string) map[string]int {
	normalized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	counts := make(map[string]int)
	for _, tok := range strings.Fields(normalized) {
		if len(tok) > minTokenLen {
			counts[tok]++
		}
	}
	return counts
}
