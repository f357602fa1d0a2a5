package vectorstore

import (
	"math"
	"sort"
	"time"
)

// decayHalfLifeDays is the time constant for recall time-decay (spec.md
// §4.6 / §8 S2): score *= exp(-age_days / decayHalfLifeDays).
const decayHalfLifeDays = 30.0

// minDecayedScore is the floor property #4 / S2 require: decay must never
// drop a result's score below 0.1, however old the memory.
const minDecayedScore = 0.1

// applyTimeDecay multiplies each result's score by an age-based factor and
// re-sorts descending. Age is measured from last_accessed_at, falling back
// to created_at for records that have never been accessed (spec.md §4.6 /
// property #4 / S2). now is threaded explicitly for deterministic tests.
func applyTimeDecay(results []Result, now time.Time) {
	for i := range results {
		reference := results[i].Record.LastAccessedAt
		if reference.IsZero() {
			reference = results[i].Record.CreatedAt
		}

		ageDays := now.Sub(reference).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}

		results[i].Score *= float32(math.Exp(-ageDays / decayHalfLifeDays))
		if results[i].Score < minDecayedScore {
			results[i].Score = minDecayedScore
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
