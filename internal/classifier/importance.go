package classifier

import (
	"regexp"
)

// Scorer produces a deterministic, pure importance score for memory
// content (spec.md §4.5): base 0.4, +0.3 per high-importance keyword
// class matched, +0.2 per medium, +0.1 for long content, -0.05 per
// casual keyword, clamped to [0.1, 1.0].
type Scorer interface {
	Score(content string) float64
}

var (
	highImportance   = regexp.MustCompile(`(?i)\b(?:secret|critical|urgent|deadline)\b`)
	mediumImportance = regexp.MustCompile(`(?i)\b(?:important|priority|remember|must|required)\b`)
	casualKeywords   = regexp.MustCompile(`(?i)\b(?:maybe|just\s+chatting|by\s+the\s+way|random(?:ly)?|no\s+big\s+deal|just\s+curious)\b`)
)

const (
	baseImportance     = 0.4
	highBonus          = 0.3
	mediumBonus        = 0.2
	lengthBonus        = 0.1
	casualPenalty      = 0.05
	lengthThreshold    = 200
	minImportanceClamp = 0.1
	maxImportanceClamp = 1.0
)

// HeuristicScorer is the built-in keyword-weighted scorer.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the default importance scorer.
func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

// Score implements Scorer. Each keyword class contributes its bonus once
// per match of a class member; "secret, secret" still counts as two
// matches of the same class, matching a literal per-keyword reading of
// the spec's "+0.3 per high-importance keyword class".
func (s *HeuristicScorer) Score(content string) float64 {
	score := baseImportance

	score += highBonus * float64(len(highImportance.FindAllString(content, -1)))
	score += mediumBonus * float64(len(mediumImportance.FindAllString(content, -1)))

	if len(content) > lengthThreshold {
		score += lengthBonus
	}

	score -= casualPenalty * float64(len(casualKeywords.FindAllString(content, -1)))

	return clamp(score, minImportanceClamp, maxImportanceClamp)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
