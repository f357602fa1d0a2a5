// Package autonomous implements spec.md §4.12 C12 Autonomous Optimiser:
// a rule engine that samples engine performance, evaluates condition
// predicates, and executes the highest-priority matching actions each
// cycle. The periodic-tick shape is grounded on the teacher's
// reasoningbank/scheduler.go (also the basis for internal/optimizer's
// Scheduler); the rule/condition/action model itself has no direct
// teacher analogue and is a light, spec-driven addition.
package autonomous

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memforge/memengine/internal/logging"
)

// Context is the sampled operating-context a rule's Condition evaluates
// against, per spec.md's gather_context.
type Context struct {
	QueryLatency  time.Duration
	MemoryUsage   int64
	CacheHitRate  float64
	ErrorRate     float64
	SystemLoad    float64
	SampledAt     time.Time
	Window        time.Duration
}

// Sampler produces a fresh Context on demand; the concrete
// implementation reads live metrics (e.g. from the optimiser/engine).
type Sampler func(ctx context.Context) (Context, error)

// Metadata classifies a rule's category, impact and risk, per spec.md's
// rule metadata.
type Metadata struct {
	Category string
	Impact   string
	Risk     string
}

// Action is the outcome of running a rule's strategy.
type Action struct {
	Name     string
	Applied  bool
	Success  bool
	Duration time.Duration
	Impact   float64
}

// Strategy performs the actual remediation named by a rule; invoked via
// ExecuteStrategy.
type Strategy func(ctx context.Context, opCtx Context) (Action, error)

// Rule is one autonomous-optimisation rule.
type Rule struct {
	ID        string
	Condition func(Context) bool
	Strategy  string
	Priority  int
	Enabled   bool
	Metadata  Metadata

	// confidence starts at 0; each LearnFromOutcomes call moves it by at
	// most 0.2 either way, keeping it within [0,1]. It ranks otherwise-tied
	// rules.
	confidence float64
}

// Outcome records whether a previously executed action achieved its
// intended effect, fed back via LearnFromOutcomes.
type Outcome struct {
	RuleID  string
	Success bool
	Impact  float64
}

// Engine holds the rule set, the performance sampler, the strategy
// registry, and per-rule learned confidence.
type Engine struct {
	sampler          Sampler
	strategies       map[string]Strategy
	maxActionsPerCycle int
	logger           *logging.Logger

	mu    sync.Mutex
	rules map[string]*Rule
}

// New constructs an autonomous optimisation engine.
func New(sampler Sampler, maxActionsPerCycle int, logger *logging.Logger) *Engine {
	if maxActionsPerCycle <= 0 {
		maxActionsPerCycle = 3
	}
	return &Engine{
		sampler:            sampler,
		strategies:         make(map[string]Strategy),
		maxActionsPerCycle: maxActionsPerCycle,
		logger:             logger,
		rules:              make(map[string]*Rule),
	}
}

// RegisterRule adds or replaces a rule.
func (e *Engine) RegisterRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	copy := r
	e.rules[r.ID] = &copy
}

// RegisterStrategy binds a named strategy implementation.
func (e *Engine) RegisterStrategy(name string, s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[name] = s
}

// GatherContext samples the current operating context via the
// configured Sampler.
func (e *Engine) GatherContext(ctx context.Context) (Context, error) {
	c, err := e.sampler(ctx)
	if err != nil {
		return Context{}, err
	}
	if c.SampledAt.IsZero() {
		c.SampledAt = time.Now()
	}
	return c, nil
}

// Identify returns the enabled rules whose condition holds against opCtx,
// sorted by priority descending (ties broken by learned confidence
// descending), limited to maxActionsPerCycle.
func (e *Engine) Identify(opCtx Context) []*Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matched []*Rule
	for _, r := range e.rules {
		if r.Enabled && r.Condition != nil && r.Condition(opCtx) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].confidence > matched[j].confidence
	})
	if len(matched) > e.maxActionsPerCycle {
		matched = matched[:e.maxActionsPerCycle]
	}

	out := make([]*Rule, len(matched))
	for i, r := range matched {
		c := *r
		out[i] = &c
	}
	return out
}

// ExecuteStrategy runs the named strategy against opCtx and times it.
func (e *Engine) ExecuteStrategy(ctx context.Context, name string, opCtx Context) (Action, error) {
	e.mu.Lock()
	strategy, ok := e.strategies[name]
	e.mu.Unlock()
	if !ok {
		return Action{Name: name, Applied: false}, nil
	}

	start := time.Now()
	action, err := strategy(ctx, opCtx)
	action.Name = name
	action.Duration = time.Since(start)
	if err != nil {
		action.Success = false
		if e.logger != nil {
			e.logger.Warn(ctx, "autonomous strategy execution failed")
		}
		return action, err
	}
	action.Applied = true
	return action, nil
}

// RunCycle gathers context, identifies matching rules, and executes
// each one's strategy in priority order, returning the resulting
// actions. A strategy failure is recorded but does not stop the cycle.
func (e *Engine) RunCycle(ctx context.Context) ([]Action, error) {
	opCtx, err := e.GatherContext(ctx)
	if err != nil {
		return nil, err
	}
	rules := e.Identify(opCtx)

	actions := make([]Action, 0, len(rules))
	for _, r := range rules {
		action, _ := e.ExecuteStrategy(ctx, r.Strategy, opCtx)
		actions = append(actions, action)
	}
	return actions, nil
}

// LearnFromOutcomes nudges each named rule's confidence by up to ±0.2
// based on reported outcomes, clamped to [0,1]. A rule whose average
// reported impact across outcomes exceeds 0.7 is promoted (its priority
// is bumped by one) so future cycles favour it.
func (e *Engine) LearnFromOutcomes(outcomes []Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byRule := make(map[string][]Outcome)
	for _, o := range outcomes {
		byRule[o.RuleID] = append(byRule[o.RuleID], o)
	}

	for ruleID, os := range byRule {
		rule, ok := e.rules[ruleID]
		if !ok {
			continue
		}
		var successRate, totalImpact float64
		for _, o := range os {
			if o.Success {
				successRate++
			}
			totalImpact += o.Impact
		}
		successRate /= float64(len(os))
		avgImpact := totalImpact / float64(len(os))

		delta := 0.2 * (2*successRate - 1) // maps successRate in [0,1] to delta in [-0.2,+0.2]
		rule.confidence = clamp(rule.confidence+delta, 0, 1)

		if avgImpact > 0.7 {
			rule.Priority++
		}
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
