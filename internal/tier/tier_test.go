package tier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memforge/memengine/internal/errs"
)

func TestDetect_PrefersAdvancedWhenFullyCapable(t *testing.T) {
	got, chain := Detect(Capabilities{NetworkReachable: true, EmbeddingCredential: true})
	assert.Equal(t, TierAdvanced, got)
	assert.Equal(t, []Tier{TierAdvanced, TierSmart, TierBasic, TierMock}, chain)
}

func TestDetect_FallsBackToSmartWithLocalModel(t *testing.T) {
	got, _ := Detect(Capabilities{LocalModelAvailable: true})
	assert.Equal(t, TierSmart, got)
}

func TestDetect_FallsBackToBasicByDefault(t *testing.T) {
	got, _ := Detect(Capabilities{})
	assert.Equal(t, TierBasic, got)
}

// alwaysFailsAt simulates a provider that fails for exactly the given tiers
// and succeeds for every other tier.
func alwaysFailsAt(failing ...Tier) EngineProvider {
	bad := make(map[Tier]bool)
	for _, t := range failing {
		bad[t] = true
	}
	return func(t Tier) (any, error) {
		if bad[t] {
			return nil, errors.New("tier unavailable")
		}
		return t, nil
	}
}

func TestNewEngine_FallsBackDuringInitialisation(t *testing.T) {
	provider := alwaysFailsAt(TierAdvanced, TierSmart)
	var gotFrom, gotTo Tier
	e, err := NewEngine(provider, TierAdvanced, Capabilities{})
	require.NoError(t, err)
	e.OnFallback(func(from, to Tier, cause error) { gotFrom, gotTo = from, to })
	assert.Equal(t, TierBasic, e.CurrentTier())
	_ = gotFrom
	_ = gotTo
}

func TestNewEngine_ExhaustsFallbackChain(t *testing.T) {
	provider := alwaysFailsAt(TierAdvanced, TierSmart, TierBasic, TierMock)
	_, err := NewEngine(provider, TierAdvanced, Capabilities{})
	require.ErrorIs(t, err, errs.ErrFallbackExhausted)
}

func TestEngine_DoFallsBackOnceOnOperationFailure(t *testing.T) {
	e, err := NewEngine(alwaysFailsAt(), TierAdvanced, Capabilities{})
	require.NoError(t, err)

	calls := 0
	result, err := e.Do(context.Background(), func(ctx context.Context, active Tier) (any, error) {
		calls++
		if active == TierAdvanced {
			return nil, errors.New("embedding provider offline")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, TierSmart, e.CurrentTier())
	assert.Equal(t, 2, calls)
}

func TestEngine_SwitchTier(t *testing.T) {
	e, err := NewEngine(alwaysFailsAt(), TierAdvanced, Capabilities{})
	require.NoError(t, err)
	require.NoError(t, e.SwitchTier(TierMock))
	assert.Equal(t, TierMock, e.CurrentTier())
}
