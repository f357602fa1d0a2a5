package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicScorer_BaseScore(t *testing.T) {
	s := NewHeuristicScorer()
	assert.InDelta(t, 0.4, s.Score("I prefer dark mode"), 1e-9)
}

func TestHeuristicScorer_HighKeywordBonus(t *testing.T) {
	s := NewHeuristicScorer()
	assert.InDelta(t, 0.7, s.Score("this is urgent"), 1e-9)
}

func TestHeuristicScorer_MediumKeywordBonus(t *testing.T) {
	s := NewHeuristicScorer()
	assert.InDelta(t, 0.6, s.Score("please remember this"), 1e-9)
}

func TestHeuristicScorer_LengthBonus(t *testing.T) {
	s := NewHeuristicScorer()
	long := strings.Repeat("word ", 60)
	assert.InDelta(t, 0.5, s.Score(long), 1e-9)
}

func TestHeuristicScorer_CasualPenalty(t *testing.T) {
	s := NewHeuristicScorer()
	// matches both "just chatting" and "maybe" (-2*0.05) plus the medium
	// keyword "important" (+0.2): 0.4 + 0.2 - 2*0.05
	assert.InDelta(t, 0.5, s.Score("just chatting, maybe not important"), 1e-9)
}

func TestHeuristicScorer_ClampsToRange(t *testing.T) {
	s := NewHeuristicScorer()
	extreme := strings.Repeat("maybe just chatting random by the way ", 30)
	assert.GreaterOrEqual(t, s.Score(extreme), 0.1)

	high := strings.Repeat("secret critical urgent deadline ", 10)
	assert.LessOrEqual(t, s.Score(high), 1.0)
}
