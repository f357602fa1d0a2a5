package autonomous

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSampler(c Context) Sampler {
	return func(ctx context.Context) (Context, error) { return c, nil }
}

func TestEngine_IdentifyReturnsOnlyMatchingEnabledRulesSortedByPriority(t *testing.T) {
	e := New(fixedSampler(Context{ErrorRate: 0.5}), 5, nil)
	e.RegisterRule(Rule{ID: "low", Enabled: true, Priority: 1, Condition: func(c Context) bool { return c.ErrorRate > 0.1 }, Strategy: "noop"})
	e.RegisterRule(Rule{ID: "high", Enabled: true, Priority: 10, Condition: func(c Context) bool { return c.ErrorRate > 0.1 }, Strategy: "noop"})
	e.RegisterRule(Rule{ID: "disabled", Enabled: false, Priority: 100, Condition: func(c Context) bool { return true }, Strategy: "noop"})
	e.RegisterRule(Rule{ID: "no-match", Enabled: true, Priority: 50, Condition: func(c Context) bool { return c.ErrorRate > 0.9 }, Strategy: "noop"})

	opCtx, err := e.GatherContext(context.Background())
	require.NoError(t, err)

	matched := e.Identify(opCtx)
	require.Len(t, matched, 2)
	assert.Equal(t, "high", matched[0].ID)
	assert.Equal(t, "low", matched[1].ID)
}

func TestEngine_IdentifyLimitsToMaxActionsPerCycle(t *testing.T) {
	e := New(fixedSampler(Context{ErrorRate: 0.5}), 1, nil)
	e.RegisterRule(Rule{ID: "a", Enabled: true, Priority: 1, Condition: func(c Context) bool { return true }, Strategy: "noop"})
	e.RegisterRule(Rule{ID: "b", Enabled: true, Priority: 2, Condition: func(c Context) bool { return true }, Strategy: "noop"})

	opCtx, _ := e.GatherContext(context.Background())
	matched := e.Identify(opCtx)
	require.Len(t, matched, 1)
	assert.Equal(t, "b", matched[0].ID)
}

func TestEngine_ExecuteStrategyRunsRegisteredStrategy(t *testing.T) {
	e := New(fixedSampler(Context{}), 5, nil)
	e.RegisterStrategy("evict_stale", func(ctx context.Context, opCtx Context) (Action, error) {
		return Action{Success: true, Impact: 0.9}, nil
	})

	action, err := e.ExecuteStrategy(context.Background(), "evict_stale", Context{})
	require.NoError(t, err)
	assert.True(t, action.Applied)
	assert.True(t, action.Success)
}

func TestEngine_ExecuteStrategyUnknownNameIsNotApplied(t *testing.T) {
	e := New(fixedSampler(Context{}), 5, nil)
	action, err := e.ExecuteStrategy(context.Background(), "missing", Context{})
	require.NoError(t, err)
	assert.False(t, action.Applied)
}

func TestEngine_RunCycleExecutesMatchedRuleStrategies(t *testing.T) {
	e := New(fixedSampler(Context{CacheHitRate: 0.2}), 5, nil)
	ran := false
	e.RegisterStrategy("warm_cache", func(ctx context.Context, opCtx Context) (Action, error) {
		ran = true
		return Action{Success: true}, nil
	})
	e.RegisterRule(Rule{ID: "low-hit-rate", Enabled: true, Priority: 1, Condition: func(c Context) bool { return c.CacheHitRate < 0.5 }, Strategy: "warm_cache"})

	actions, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, ran)
}

func TestEngine_RunCycleContinuesAfterStrategyFailure(t *testing.T) {
	e := New(fixedSampler(Context{ErrorRate: 1}), 5, nil)
	e.RegisterStrategy("bad", func(ctx context.Context, opCtx Context) (Action, error) {
		return Action{}, errors.New("boom")
	})
	e.RegisterStrategy("good", func(ctx context.Context, opCtx Context) (Action, error) {
		return Action{Success: true}, nil
	})
	e.RegisterRule(Rule{ID: "r1", Enabled: true, Priority: 2, Condition: func(c Context) bool { return true }, Strategy: "bad"})
	e.RegisterRule(Rule{ID: "r2", Enabled: true, Priority: 1, Condition: func(c Context) bool { return true }, Strategy: "good"})

	actions, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.False(t, actions[0].Success)
	assert.True(t, actions[1].Success)
}

func TestEngine_LearnFromOutcomesPromotesHighImpactRule(t *testing.T) {
	e := New(fixedSampler(Context{}), 5, nil)
	e.RegisterRule(Rule{ID: "r1", Enabled: true, Priority: 1, Condition: func(c Context) bool { return true }, Strategy: "noop"})

	e.LearnFromOutcomes([]Outcome{{RuleID: "r1", Success: true, Impact: 0.9}})

	e.mu.Lock()
	rule := e.rules["r1"]
	e.mu.Unlock()
	assert.Equal(t, 2, rule.Priority)
	assert.Greater(t, rule.confidence, 0.0)
}

func TestEngine_GatherContextStampsSampleTimeWhenMissing(t *testing.T) {
	e := New(fixedSampler(Context{}), 5, nil)
	start := time.Now()
	c, err := e.GatherContext(context.Background())
	require.NoError(t, err)
	assert.False(t, c.SampledAt.Before(start))
}
