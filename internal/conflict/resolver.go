package conflict

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
)

// Metrics tracks spec.md §4.11's aggregate conflict-resolution stats.
type Metrics struct {
	Total                int
	Resolved             int
	Escalated            int
	StrategyEffectiveness map[model.ResolutionStrategy]float64
	TypeDistribution      map[model.ConflictType]int
	PerAgentConflictRate  map[string]int
	PatternMatchCount     int
}

// ResolutionSuccessRate returns Resolved/Total, or 0 if none yet.
func (m Metrics) ResolutionSuccessRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Resolved) / float64(m.Total)
}

// Resolver owns the conflict set, a single-consumer resolution queue,
// the approval workflow, and rolling metrics. Shaped after the
// teacher's ConsolidationScheduler tick loop.
type Resolver struct {
	rules               []Rule
	ranking             map[string]int
	recommender         Recommender
	ml                  MLClassifier
	approvalThreshold   model.ConflictPriority
	logger              *logging.Logger
	clock               func() time.Time

	mu        sync.Mutex
	conflicts map[string]*model.Conflict
	queue     chan string
	metrics   Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewResolver constructs a Resolver. approvalThreshold is the minimum
// priority that requires sign-off before a resolution is applied
// (spec.md defaults this to PriorityCritical).
func NewResolver(rules []Rule, ranking map[string]int, recommender Recommender, ml MLClassifier, approvalThreshold model.ConflictPriority, logger *logging.Logger) *Resolver {
	if approvalThreshold == "" {
		approvalThreshold = model.PriorityCritical
	}
	return &Resolver{
		rules:             rules,
		ranking:           ranking,
		recommender:       recommender,
		ml:                ml,
		approvalThreshold: approvalThreshold,
		logger:            logger,
		clock:             time.Now,
		conflicts:         make(map[string]*model.Conflict),
		queue:             make(chan string, 1024),
		metrics: Metrics{
			StrategyEffectiveness: make(map[model.ResolutionStrategy]float64),
			TypeDistribution:      make(map[model.ConflictType]int),
			PerAgentConflictRate:  make(map[string]int),
		},
	}
}

func priorityRank(p model.ConflictPriority) int {
	switch p {
	case model.PriorityEmergency:
		return 5
	case model.PriorityCritical:
		return 4
	case model.PriorityHigh:
		return 3
	case model.PriorityMedium:
		return 2
	default:
		return 1
	}
}

// DetectAndRegister classifies the conflict between a and b, registers
// it with status=detected, scores its priority, and (if autoEnqueue) adds
// it to the resolution queue. Returns (nil, false, nil) when a and b do
// not conflict.
func (r *Resolver) DetectAndRegister(ctx context.Context, a, b model.ConflictingData, structurallyDivergent bool, scoreIn ScoreInputs, autoEnqueue bool) (*model.Conflict, bool, error) {
	ctype, ok := Detect(a, b, structurallyDivergent, r.ml)
	if !ok {
		return nil, false, nil
	}

	priority := Bucketise(Score(ctype, scoreIn))
	c := &model.Conflict{
		ID:              uuid.NewString(),
		Type:            ctype,
		Status:          model.StatusDetected,
		Priority:        priority,
		InvolvedAgents:  []string{a.AgentID, b.AgentID},
		ConflictingData: []model.ConflictingData{a, b},
		DetectedAt:      r.clock(),
	}

	r.mu.Lock()
	r.conflicts[c.ID] = c
	r.metrics.Total++
	r.metrics.TypeDistribution[ctype]++
	for _, agent := range c.InvolvedAgents {
		r.metrics.PerAgentConflictRate[agent]++
	}
	r.mu.Unlock()

	if autoEnqueue {
		r.enqueue(c.ID)
	}
	return c, true, nil
}

func (r *Resolver) enqueue(id string) {
	select {
	case r.queue <- id:
	default:
		if r.logger != nil {
			r.logger.Warn(context.Background(), "conflict resolution queue is full, dropping enqueue")
		}
	}
}

// Resolve runs strategy selection and dispatch for conflict id. If the
// conflict's priority is at or above the approval threshold, it
// transitions to pending_approval instead of applying the resolution
// immediately.
func (r *Resolver) Resolve(ctx context.Context, id string) (*model.Conflict, error) {
	r.mu.Lock()
	c, ok := r.conflicts[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: conflict %s", errs.ErrNotFound, id)
	}
	if c.Status == model.StatusResolved || c.Status == model.StatusAbandoned {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: conflict %s", errs.ErrConflictAlreadyResolved, id)
	}
	c.Status = model.StatusAnalysing
	r.mu.Unlock()

	strategy := SelectStrategy(c, r.rules, nil, r.recommender)
	res, err := Resolve(c, strategy, r.ranking, r.recommender, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		c.Status = model.StatusEscalated
		r.metrics.Escalated++
		metricResolutions.WithLabelValues(string(c.Type), "escalated").Inc()
		if r.logger != nil {
			r.logger.Warn(ctx, "conflict resolution failed, escalating")
		}
		return c, fmt.Errorf("%w: %v", errs.ErrResolutionFailed, err)
	}

	c.Strategy = strategy
	c.Resolution = &res

	if priorityRank(c.Priority) >= priorityRank(r.approvalThreshold) {
		c.Status = model.StatusPendingApproval
		c.ApprovalState = &model.Approval{Required: true, Threshold: 0.5}
		metricResolutions.WithLabelValues(string(c.Type), "pending_approval").Inc()
		return c, nil
	}

	now := r.clock()
	c.Status = model.StatusResolved
	c.ResolvedAt = &now
	r.metrics.Resolved++
	r.metrics.StrategyEffectiveness[strategy] = r.metrics.StrategyEffectiveness[strategy] + res.Confidence
	metricResolutions.WithLabelValues(string(c.Type), "resolved").Inc()
	return c, nil
}

// SetApprovers assigns the set of agents whose vote counts toward a
// pending conflict's approval threshold.
func (r *Resolver) SetApprovers(id string, approvers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conflicts[id]
	if !ok {
		return fmt.Errorf("%w: conflict %s", errs.ErrNotFound, id)
	}
	if c.ApprovalState == nil {
		c.ApprovalState = &model.Approval{Required: true, Threshold: 0.5}
	}
	c.ApprovalState.Approvers = approvers
	return nil
}

// Approve records agentID's vote on a pending-approval conflict. Once
// the approved fraction reaches the threshold, the conflict applies its
// resolution and transitions to resolved; once every approver has voted
// without reaching the threshold, it transitions to escalated.
func (r *Resolver) Approve(ctx context.Context, id, agentID string, approved bool, reason string) (*model.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conflicts[id]
	if !ok {
		return nil, fmt.Errorf("%w: conflict %s", errs.ErrNotFound, id)
	}
	if c.Status != model.StatusPendingApproval || c.ApprovalState == nil {
		return nil, fmt.Errorf("%w: conflict %s is not pending approval", errs.ErrInternal, id)
	}
	if len(c.ApprovalState.Approvers) == 0 {
		return nil, fmt.Errorf("%w: conflict %s", errs.ErrApprovalRequired, id)
	}
	if !contains(c.ApprovalState.Approvers, agentID) {
		return nil, fmt.Errorf("%w: %s is not a registered approver for conflict %s", errs.ErrPermissionDenied, agentID, id)
	}

	c.ApprovalState.Approvals = append(c.ApprovalState.Approvals, model.ApprovalVote{
		AgentID: agentID, Approved: approved, Reason: reason, Timestamp: r.clock(),
	})

	total := len(c.ApprovalState.Approvers)
	approvedCount := 0
	for _, v := range c.ApprovalState.Approvals {
		if v.Approved {
			approvedCount++
		}
	}
	fraction := 0.0
	if total > 0 {
		fraction = float64(approvedCount) / float64(total)
	}

	if fraction >= c.ApprovalState.Threshold {
		now := r.clock()
		c.Status = model.StatusResolved
		c.ResolvedAt = &now
		r.metrics.Resolved++
		if c.Resolution != nil {
			r.metrics.StrategyEffectiveness[c.Strategy] = r.metrics.StrategyEffectiveness[c.Strategy] + c.Resolution.Confidence
		}
		metricResolutions.WithLabelValues(string(c.Type), "resolved").Inc()
		return c, nil
	}

	if len(c.ApprovalState.Approvals) >= total {
		c.Status = model.StatusEscalated
		r.metrics.Escalated++
		metricResolutions.WithLabelValues(string(c.Type), "escalated").Inc()
	}
	return c, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Get returns a conflict by id.
func (r *Resolver) Get(id string) (*model.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conflicts[id]
	if !ok {
		return nil, fmt.Errorf("%w: conflict %s", errs.ErrNotFound, id)
	}
	return c, nil
}

// Metrics returns a snapshot of the resolver's rolling statistics.
func (r *Resolver) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Start launches the single-consumer resolution loop: it pops one
// conflict id per tick and resolves it. A resolution failure escalates
// the conflict and is never retried automatically.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	if r.stopCh != nil {
		r.mu.Unlock()
		return
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.loop(ctx)
}

func (r *Resolver) loop(ctx context.Context) {
	defer close(r.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case id := <-r.queue:
			if _, err := r.Resolve(ctx, id); err != nil && r.logger != nil {
				r.logger.Warn(ctx, "queued conflict resolution failed")
			}
		}
	}
}

// Stop signals the resolution loop to exit and waits for it to finish.
func (r *Resolver) Stop() {
	r.mu.Lock()
	stopCh := r.stopCh
	r.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-r.doneCh
}
