package conflict

import "github.com/memforge/memengine/internal/model"

// baseScore is the per-type weight from spec.md §4.11's priority formula.
var baseScore = map[model.ConflictType]float64{
	model.ConflictData:        3,
	model.ConflictVersion:     2,
	model.ConflictPermission:  4,
	model.ConflictTimestamp:   1,
	model.ConflictStructure:   4,
	model.ConflictSemantic:    3,
	model.ConflictResource:    4,
	model.ConflictDependency:  3,
	model.ConflictConsistency: 4,
}

// ScoreInputs carries the factors the priority formula weighs beyond the
// conflict's type.
type ScoreInputs struct {
	ConfidenceDiff float64
	AgeDiffOverDay bool
	Critical       bool
}

// Score computes spec.md §4.11's priority score:
// base(type) + 2*|confidence_diff| + 2*(age_diff>1day) + 3*(context.critical).
func Score(conflictType model.ConflictType, in ScoreInputs) float64 {
	score := baseScore[conflictType]
	score += 2 * abs(in.ConfidenceDiff)
	if in.AgeDiffOverDay {
		score += 2
	}
	if in.Critical {
		score += 3
	}
	return score
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Bucketise maps a priority score to the 5-valued taxonomy:
// >=8 emergency, >=6 critical, >=4 high, >=2 medium, else low.
func Bucketise(score float64) model.ConflictPriority {
	switch {
	case score >= 8:
		return model.PriorityEmergency
	case score >= 6:
		return model.PriorityCritical
	case score >= 4:
		return model.PriorityHigh
	case score >= 2:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
