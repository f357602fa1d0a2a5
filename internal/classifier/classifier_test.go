package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memforge/memengine/internal/model"
)

func TestRegexClassifier_Classify(t *testing.T) {
	c := NewRegexClassifier()

	cases := []struct {
		name    string
		content string
		want    model.MemoryType
	}{
		{"preference", "I prefer dark mode", model.TypePreference},
		{"emotion", "I feel anxious about the launch", model.TypeEmotion},
		{"task", "remind me to submit the report by Friday", model.TypeTask},
		{"personality", "I am an introvert who recharges alone", model.TypePersonality},
		{"thread", "as we discussed earlier today, the plan changed", model.TypeThread},
		{"procedure", "step 1: clone the repo, step 2: run make", model.TypeProcedure},
		{"fact", "Paris is the capital of France", model.TypeFact},
		{"default", "zzz qqq xyz", model.TypeThread},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, confidence := c.Classify(tc.content, nil)
			assert.Equal(t, tc.want, got)
			assert.Greater(t, confidence, 0.0)
		})
	}
}

func TestRegexClassifier_EmotionBeatsPreferenceWhenBothPresent(t *testing.T) {
	// Emotion has the higher priority rank; a clearly emotional sentence
	// with some preference-like wording should still classify as emotion.
	c := NewRegexClassifier()
	got, _ := c.Classify("I feel frustrated even though I prefer dark mode", nil)
	assert.Equal(t, model.TypeEmotion, got)
}

func TestRegexClassifier_TagsParticipateInMatching(t *testing.T) {
	c := NewRegexClassifier()
	got, _ := c.Classify("some note", []string{"remind me to follow up"})
	assert.Equal(t, model.TypeTask, got)
}
