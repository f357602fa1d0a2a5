// Package tier implements spec.md §4.7 C6 Tier Detector & Unified Engine:
// capability probing, tier selection, and fallback-on-error routing across
// the four memory-engine capability tiers.
package tier

import (
	"context"
	"fmt"

	"github.com/memforge/memengine/internal/errs"
)

// Tier is one of the four totally-ordered capability levels.
type Tier string

const (
	TierAdvanced Tier = "advanced" // remote embeddings + external vector index
	TierSmart    Tier = "smart"    // local embeddings
	TierBasic    Tier = "basic"    // keyword search over storage
	TierMock     Tier = "mock"     // in-memory, test-only
)

// chain is the fallback order used by Detect and the Engine.
var chain = []Tier{TierAdvanced, TierSmart, TierBasic, TierMock}

// Capabilities reports what the environment can support, sampled once at
// detection time.
type Capabilities struct {
	NetworkReachable    bool
	EmbeddingCredential bool
	LocalModelAvailable bool
}

// Detect returns the highest feasible tier given the sampled capabilities,
// plus the remaining fallback chain from that point (inclusive).
func Detect(caps Capabilities) (Tier, []Tier) {
	switch {
	case caps.NetworkReachable && caps.EmbeddingCredential:
		return TierAdvanced, chainFrom(TierAdvanced)
	case caps.LocalModelAvailable:
		return TierSmart, chainFrom(TierSmart)
	default:
		return TierBasic, chainFrom(TierBasic)
	}
}

func chainFrom(start Tier) []Tier {
	for i, t := range chain {
		if t == start {
			out := make([]Tier, len(chain)-i)
			copy(out, chain[i:])
			return out
		}
	}
	return append([]Tier(nil), chain...)
}

// Operation is any Memory Engine call the unified Engine routes and
// retries across tiers on failure.
type Operation func(ctx context.Context, active Tier) (any, error)

// EngineProvider constructs (or re-fetches) the underlying engine for a
// given tier; the unified Engine never talks to storage/vectors directly.
type EngineProvider func(t Tier) (any, error)

// Stats exposes introspection over the active tier.
type Stats struct {
	CurrentTier  Tier
	Capabilities Capabilities
	FallbackHops int
}

// Engine is the unified engine: it holds the active tier and the fallback
// chain remaining from it, and retries a failed operation exactly once on
// the next tier in the chain.
type Engine struct {
	provider     EngineProvider
	current      Tier
	fallbackFrom []Tier
	fallbackHops int
	onFallback   func(from, to Tier, cause error)
}

// NewEngine builds a unified Engine starting at preferred (or the
// auto-detected tier if preferred is empty), backed by provider.
func NewEngine(provider EngineProvider, preferred Tier, caps Capabilities) (*Engine, error) {
	tierToUse := preferred
	var remaining []Tier
	if tierToUse == "" {
		tierToUse, remaining = Detect(caps)
	} else {
		remaining = chainFrom(tierToUse)
	}

	e := &Engine{provider: provider, current: tierToUse, fallbackFrom: remaining}
	if _, err := provider(tierToUse); err != nil {
		return nil, e.fallbackAfterInitError(err)
	}
	return e, nil
}

func (e *Engine) fallbackAfterInitError(cause error) error {
	for len(e.fallbackFrom) > 1 {
		e.fallbackFrom = e.fallbackFrom[1:]
		next := e.fallbackFrom[0]
		if _, err := e.provider(next); err == nil {
			e.current = next
			e.fallbackHops++
			if e.onFallback != nil {
				e.onFallback(e.current, next, cause)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %v", errs.ErrFallbackExhausted, cause)
}

// OnFallback registers a callback invoked whenever the engine falls back
// to a lower tier, e.g. to emit the single startup warning S4 requires.
func (e *Engine) OnFallback(fn func(from, to Tier, cause error)) {
	e.onFallback = fn
}

// CurrentTier returns the tier currently in use.
func (e *Engine) CurrentTier() Tier { return e.current }

// SwitchTier explicitly re-initialises at the given tier.
func (e *Engine) SwitchTier(t Tier) error {
	if _, err := e.provider(t); err != nil {
		return fmt.Errorf("%w: switching to tier %s: %v", errs.ErrAdapterFailure, t, err)
	}
	e.current = t
	e.fallbackFrom = chainFrom(t)
	return nil
}

// Stats reports introspectable tier information.
func (e *Engine) Stats(caps Capabilities) Stats {
	return Stats{CurrentTier: e.current, Capabilities: caps, FallbackHops: e.fallbackHops}
}

// Do runs op at the current tier; on failure, if a fallback tier remains,
// it re-initialises at the next tier and retries exactly once.
func (e *Engine) Do(ctx context.Context, op Operation) (any, error) {
	result, err := op(ctx, e.current)
	if err == nil {
		return result, nil
	}

	if len(e.fallbackFrom) <= 1 {
		return nil, fmt.Errorf("%w: %v", errs.ErrFallbackExhausted, err)
	}
	next := e.fallbackFrom[1]
	if _, initErr := e.provider(next); initErr != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFallbackExhausted, err)
	}

	from := e.current
	e.current = next
	e.fallbackFrom = chainFrom(next)
	e.fallbackHops++
	if e.onFallback != nil {
		e.onFallback(from, next, err)
	}

	return op(ctx, e.current)
}
