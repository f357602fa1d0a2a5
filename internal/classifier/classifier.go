// Package classifier assigns a model.MemoryType and an importance score to
// free-form memory content (spec.md §4 C4 Classifier & Importance Scorer).
// It follows the ordered-regex-rule shape of the teacher's reasoning-bank
// category classifier, retargeted from CI/CD memory categories to the
// seven memory types.
package classifier

import (
	"regexp"
	"strings"

	"github.com/memforge/memengine/internal/model"
)

// maxContentLength bounds the text handed to regexp matching so a
// pathologically long memory cannot cause excessive backtracking.
const maxContentLength = 8192

// typeRule pairs a compiled regex with the memory type it detects and the
// base confidence to report when it matches.
type typeRule struct {
	regex      *regexp.Regexp
	memoryType model.MemoryType
	confidence float64
}

// Classifier assigns a MemoryType to memory content.
type Classifier interface {
	Classify(content string, tags []string) (model.MemoryType, float64)
}

// RegexClassifier evaluates ordered regex rules; the first match wins.
// Thread-safe: all patterns are compiled once at construction.
type RegexClassifier struct {
	rules []*typeRule
}

// NewRegexClassifier builds a classifier with the built-in rule set.
func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{rules: buildRules()}
}

// buildRules returns ordered rules matching model.ValidTypes' priority:
// emotion > task > personality > thread > preference > procedure > fact.
func buildRules() []*typeRule {
	return []*typeRule{
		{
			regex:      regexp.MustCompile(`(?i)\b(?:i\s+feel|i'?m\s+(?:happy|sad|frustrated|anxious|excited|worried|angry|grateful)|makes?\s+me\s+feel|(?:love|hate|dread)\s+(?:it|this|that)\s+when)\b`),
			memoryType: model.TypeEmotion,
			confidence: 0.9,
		},
		{
			regex:      regexp.MustCompile(`(?i)\b(?:remind\s+me\s+to|todo|to-do|need(?:s)?\s+to\s+(?:finish|complete|submit|review|send)|due\s+(?:by|on|date)|deadline|follow[\s-]?up\s+(?:on|with))\b`),
			memoryType: model.TypeTask,
			confidence: 0.85,
		},
		{
			regex:      regexp.MustCompile(`(?i)\b(?:i\s+am\s+(?:an?\s+)?(?:introvert|extrovert|perfectionist|night\s+owl|early\s+riser)|my\s+personality|i\s+tend\s+to|i'?m\s+the\s+type\s+(?:of\s+person\s+)?who)\b`),
			memoryType: model.TypePersonality,
			confidence: 0.85,
		},
		{
			regex:      regexp.MustCompile(`(?i)\b(?:earlier\s+(?:today|this\s+week)|as\s+(?:i|we)\s+(?:mentioned|discussed)|continuing\s+(?:from|our)|picking\s+up\s+(?:where|from)|in\s+(?:our|the)\s+last\s+conversation)\b`),
			memoryType: model.TypeThread,
			confidence: 0.8,
		},
		{
			regex:      regexp.MustCompile(`(?i)\b(?:i\s+prefer|i\s+like|i\s+don'?t\s+like|i\s+always\s+(?:use|choose|pick)|my\s+favorite|please\s+(?:always|never)|i\s+want\s+(?:you\s+)?to\s+always)\b`),
			memoryType: model.TypePreference,
			confidence: 0.85,
		},
		{
			regex:      regexp.MustCompile(`(?i)\b(?:step\s+\d|first,?\s+then|to\s+(?:do|accomplish|set\s+up)\s+this|the\s+process\s+(?:is|for)|here'?s\s+how\s+(?:to|you)|instructions?\s+(?:for|to))\b`),
			memoryType: model.TypeProcedure,
			confidence: 0.8,
		},
		{
			regex:      regexp.MustCompile(`(?i)\b(?:is\s+(?:a|an|the)|was\s+(?:born|founded|created)|located\s+in|consists\s+of|refers\s+to|defined\s+as|capital\s+of|equal(?:s)?\s+to)\b`),
			memoryType: model.TypeFact,
			confidence: 0.7,
		},
	}
}

// Classify returns the best-matching memory type and confidence, testing
// rules in the documented priority order: emotion > task > personality >
// thread > preference > procedure > fact. The first matching rule wins.
// Falls back to TypeThread at 0.5 confidence when nothing matches.
func (c *RegexClassifier) Classify(content string, tags []string) (model.MemoryType, float64) {
	combined := content
	if len(tags) > 0 {
		combined += " " + strings.Join(tags, " ")
	}
	if len(combined) > maxContentLength {
		combined = combined[:maxContentLength]
	}

	for _, rule := range c.rules {
		if rule.regex.MatchString(combined) {
			return rule.memoryType, rule.confidence
		}
	}
	return model.TypeThread, 0.5
}
