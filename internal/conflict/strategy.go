package conflict

import (
	"fmt"
	"sort"
	"time"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/model"
)

// Rule is an enabled, type-scoped resolution rule; the first matching
// rule (highest Priority first) wins strategy selection.
type Rule struct {
	ID       string
	Type     model.ConflictType
	Enabled  bool
	Priority int
	Action   model.ResolutionStrategy
}

// Recommender delegates strategy selection or resolution to an external
// (e.g. ML) recommender when no rule or historical pattern applies.
type Recommender interface {
	Recommend(c *model.Conflict) (model.ResolutionStrategy, bool)
	Resolve(c *model.Conflict) (model.Resolution, error)
}

// defaultStrategy is spec.md §4.11's per-type fallback when no rule,
// pattern, or recommender applies.
var defaultStrategy = map[model.ConflictType]model.ResolutionStrategy{
	model.ConflictData:        StrategyMerge,
	model.ConflictVersion:     StrategyTemporal,
	model.ConflictPermission:  StrategyConsensus,
	model.ConflictTimestamp:   StrategyTemporal,
	model.ConflictStructure:   StrategyRuleBased,
	model.ConflictSemantic:    StrategyMLGuided,
	model.ConflictResource:    StrategyPriority,
	model.ConflictDependency:  StrategyRuleBased,
	model.ConflictConsistency: StrategyAutomatic,
}

const (
	StrategyAutomatic = model.StrategyAutomatic
	StrategyRuleBased = model.StrategyRuleBased
	StrategyMLGuided  = model.StrategyMLGuided
	StrategyConsensus = model.StrategyConsensus
	StrategyPriority  = model.StrategyPriority
	StrategyMerge     = model.StrategyMerge
	StrategyTemporal  = model.StrategyTemporal
	StrategyManual    = model.StrategyManual
	StrategyHybrid    = model.StrategyHybrid
)

// SelectStrategy picks a resolution strategy for c: the first matching
// enabled rule of c's type (highest priority first), else a historical
// pattern match, else the recommender, else the type default.
func SelectStrategy(c *model.Conflict, rules []Rule, historicalMatch func(*model.Conflict) (model.ResolutionStrategy, bool), recommender Recommender) model.ResolutionStrategy {
	var matching []Rule
	for _, r := range rules {
		if r.Enabled && r.Type == c.Type {
			matching = append(matching, r)
		}
	}
	if len(matching) > 0 {
		sort.Slice(matching, func(i, j int) bool { return matching[i].Priority > matching[j].Priority })
		return matching[0].Action
	}

	if historicalMatch != nil {
		if strat, ok := historicalMatch(c); ok {
			return strat
		}
	}

	if recommender != nil {
		if strat, ok := recommender.Recommend(c); ok {
			return strat
		}
	}

	return defaultStrategy[c.Type]
}

// Resolve dispatches c to the named strategy and returns its outcome.
func Resolve(c *model.Conflict, strategy model.ResolutionStrategy, ranking map[string]int, recommender Recommender, manualPayload map[string]any) (model.Resolution, error) {
	switch strategy {
	case StrategyAutomatic:
		return resolveAutomatic(c), nil
	case StrategyRuleBased:
		return resolveRuleBased(c), nil
	case StrategyMLGuided:
		if recommender == nil {
			return model.Resolution{}, fmt.Errorf("%w: no ml recommender configured", errs.ErrResolutionFailed)
		}
		res, err := recommender.Resolve(c)
		if err != nil {
			return model.Resolution{}, fmt.Errorf("%w: %v", errs.ErrResolutionFailed, err)
		}
		res.InvolvedStrategies = []model.ResolutionStrategy{StrategyMLGuided}
		return res, nil
	case StrategyConsensus:
		return resolveConsensus(c), nil
	case StrategyPriority:
		return resolvePriority(c, ranking), nil
	case StrategyMerge:
		return resolveMerge(c), nil
	case StrategyTemporal:
		return resolveTemporal(c), nil
	case StrategyManual:
		return model.Resolution{ResolvedData: manualPayload, Confidence: 1.0, Reasoning: "manual override", InvolvedStrategies: []model.ResolutionStrategy{StrategyManual}}, nil
	case StrategyHybrid:
		return resolveHybrid(c, ranking)
	default:
		return model.Resolution{}, fmt.Errorf("%w: unknown strategy %q", errs.ErrResolutionFailed, strategy)
	}
}

func resolveAutomatic(c *model.Conflict) model.Resolution {
	best := c.ConflictingData[0]
	for _, d := range c.ConflictingData[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return model.Resolution{ResolvedData: best.Data, Confidence: best.Confidence, Reasoning: "highest confidence entry", InvolvedStrategies: []model.ResolutionStrategy{StrategyAutomatic}}
}

func resolveRuleBased(c *model.Conflict) model.Resolution {
	// Picks the highest-confidence entry, as resolveAutomatic does, and
	// tags the outcome rule_based. No rule's action is consulted here, and
	// this path is also reached without any matching rule (it is the type
	// default for structure and dependency conflicts).
	res := resolveAutomatic(c)
	res.InvolvedStrategies = []model.ResolutionStrategy{StrategyRuleBased}
	res.Reasoning = "rule-based: " + res.Reasoning
	return res
}

func resolveConsensus(c *model.Conflict) model.Resolution {
	votes := make(map[string]int)
	bestConfidence := make(map[string]float64)
	rep := make(map[string]map[string]any)
	for _, d := range c.ConflictingData {
		key := fmt.Sprintf("%v", d.Data)
		votes[key]++
		if d.Confidence > bestConfidence[key] {
			bestConfidence[key] = d.Confidence
		}
		rep[key] = d.Data
	}

	var winner string
	for key, count := range votes {
		if winner == "" ||
			count > votes[winner] ||
			(count == votes[winner] && bestConfidence[key] > bestConfidence[winner]) {
			winner = key
		}
	}
	return model.Resolution{ResolvedData: rep[winner], Confidence: bestConfidence[winner], Reasoning: "majority vote", InvolvedStrategies: []model.ResolutionStrategy{StrategyConsensus}}
}

func resolvePriority(c *model.Conflict, ranking map[string]int) model.Resolution {
	best := c.ConflictingData[0]
	bestRank := ranking[best.AgentID]
	for _, d := range c.ConflictingData[1:] {
		if ranking[d.AgentID] > bestRank {
			best = d
			bestRank = ranking[d.AgentID]
		}
	}
	return model.Resolution{ResolvedData: best.Data, Confidence: best.Confidence, Reasoning: "highest-ranked agent", InvolvedStrategies: []model.ResolutionStrategy{StrategyPriority}}
}

// resolveMerge unions every field present across entries; on a scalar
// collision, last-write-wins by timestamp unless the field is marked
// additive (its values are string-joined instead of overwritten).
func resolveMerge(c *model.Conflict) model.Resolution {
	merged := map[string]any{}
	latest := map[string]time.Time{}
	for _, d := range c.ConflictingData {
		for k, v := range d.Data {
			if additiveFields[k] {
				if existing, ok := merged[k].(string); ok {
					if s, ok := v.(string); ok {
						merged[k] = existing + "; " + s
						continue
					}
				}
				merged[k] = v
				continue
			}
			if t, ok := latest[k]; !ok || d.Timestamp.After(t) {
				merged[k] = v
				latest[k] = d.Timestamp
			}
		}
	}
	return model.Resolution{ResolvedData: merged, Confidence: 0.8, Reasoning: "field-wise merge", InvolvedStrategies: []model.ResolutionStrategy{StrategyMerge}}
}

// additiveFields names fields merged by concatenation instead of
// last-write-wins. Configured statically; spec.md leaves the exact set
// to the implementation.
var additiveFields = map[string]bool{
	"tags":  true,
	"notes": true,
}

func resolveTemporal(c *model.Conflict) model.Resolution {
	latest := c.ConflictingData[0]
	for _, d := range c.ConflictingData[1:] {
		if d.Timestamp.After(latest.Timestamp) {
			latest = d
		}
	}
	return model.Resolution{ResolvedData: latest.Data, Confidence: latest.Confidence, Reasoning: "latest timestamp", InvolvedStrategies: []model.ResolutionStrategy{StrategyTemporal}}
}

func resolveHybrid(c *model.Conflict, ranking map[string]int) (model.Resolution, error) {
	candidates := []model.Resolution{resolveAutomatic(c), resolveRuleBased(c), resolveTemporal(c)}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	best.InvolvedStrategies = []model.ResolutionStrategy{StrategyAutomatic, StrategyRuleBased, StrategyTemporal}
	best.Reasoning = "hybrid: " + best.Reasoning
	return best, nil
}
