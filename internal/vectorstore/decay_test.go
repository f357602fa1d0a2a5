package vectorstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/memforge/memengine/internal/model"
)

func TestApplyTimeDecay_NewerRanksHigherAfterEqualScore(t *testing.T) {
	now := time.Now()
	results := []Result{
		{Record: model.Record{ID: "old", CreatedAt: now.Add(-60 * 24 * time.Hour)}, Score: 0.9},
		{Record: model.Record{ID: "new", CreatedAt: now}, Score: 0.9},
	}

	applyTimeDecay(results, now)

	assert.Equal(t, "new", results[0].Record.ID)
	assert.Less(t, results[1].Score, results[0].Score)
}

func TestApplyTimeDecay_ZeroAgeUnaffected(t *testing.T) {
	now := time.Now()
	results := []Result{{Record: model.Record{CreatedAt: now}, Score: 0.5}}
	applyTimeDecay(results, now)
	assert.InDelta(t, 0.5, results[0].Score, 1e-6)
}

func TestApplyTimeDecay_FutureTimestampClampedToZeroAge(t *testing.T) {
	now := time.Now()
	results := []Result{{Record: model.Record{CreatedAt: now.Add(time.Hour)}, Score: 0.5}}
	applyTimeDecay(results, now)
	assert.InDelta(t, 0.5, results[0].Score, 1e-6)
}

func TestApplyTimeDecay_UsesLastAccessedOverCreated(t *testing.T) {
	now := time.Now()
	results := []Result{{
		Record: model.Record{
			CreatedAt:      now.Add(-120 * 24 * time.Hour),
			LastAccessedAt: now,
		},
		Score: 0.5,
	}}
	applyTimeDecay(results, now)
	assert.InDelta(t, 0.5, results[0].Score, 1e-6)
}

func TestApplyTimeDecay_ScoreFlooredAtMinimum(t *testing.T) {
	now := time.Now()
	results := []Result{{Record: model.Record{CreatedAt: now.Add(-3650 * 24 * time.Hour)}, Score: 0.9}}
	applyTimeDecay(results, now)
	assert.Equal(t, float32(minDecayedScore), results[0].Score)
}
