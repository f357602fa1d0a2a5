// Package conflict implements spec.md §4.11 C10 Conflict Resolver:
// detection, priority scoring, strategy selection/dispatch, an approval
// workflow for high-priority conflicts, and a single-consumer
// resolution queue. It follows the teacher's scheduler shape
// (internal/reasoningbank/scheduler.go) for the queue's tick loop.
package conflict

import (
	"fmt"
	"time"

	"github.com/memforge/memengine/internal/model"
)

// MLClassifier flags whether two data views diverge in meaning even
// when their raw content differs only cosmetically. Optional; when nil,
// content inequality always classifies as data_conflict.
type MLClassifier interface {
	IsSemanticDivergence(a, b model.ConflictingData) bool
}

// Detect classifies the kind of conflict between two ConflictingData
// views of the same logical item, per spec.md §4.11's priority order:
// identical checksums -> no conflict; version mismatch -> version;
// |t1-t2|>60s at equal version -> timestamp; structural mismatch ->
// structure; content inequality -> data (or semantic if ml flags
// meaning-divergence); metadata permission divergence -> permission.
// ok is false when the two views are identical (no conflict).
func Detect(a, b model.ConflictingData, structurallyDivergent bool, ml MLClassifier) (model.ConflictType, bool) {
	if a.Checksum != "" && a.Checksum == b.Checksum {
		return "", false
	}
	if a.Version != b.Version {
		return model.ConflictVersion, true
	}
	if absDuration(a.Timestamp.Sub(b.Timestamp)) > 60*time.Second {
		return model.ConflictTimestamp, true
	}
	if structurallyDivergent {
		return model.ConflictStructure, true
	}
	if !dataEqual(a.Data, b.Data) {
		if ml != nil && ml.IsSemanticDivergence(a, b) {
			return model.ConflictSemantic, true
		}
		return model.ConflictData, true
	}
	if permissionDivergence(a.Data, b.Data) {
		return model.ConflictPermission, true
	}
	return "", false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func dataEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || !equalValue(v, bv) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func permissionDivergence(a, b map[string]any) bool {
	ap, aok := a["permissions"]
	bp, bok := b["permissions"]
	if !aok && !bok {
		return false
	}
	return !equalValue(ap, bp)
}
