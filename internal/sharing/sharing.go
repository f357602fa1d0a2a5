// Package sharing implements spec.md §4.10 C9 Sharing Manager:
// cross-agent memory sharing with permissioned access, replica
// tracking, and an access cache with per-entry TTL and no size limit. Parallel replica delivery uses
// golang.org/x/sync/errgroup, the fan-out primitive the broader example
// pack favours over hand-rolled WaitGroup plumbing.
package sharing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
)

// ReplicationStrategy names a replication mode. Manager does not read
// Config.Strategy: Share, Update and an approved Respond always push
// replicas synchronously, whichever strategy is configured.
type ReplicationStrategy string

const (
	// StrategyImmediate names synchronous replication during share/update.
	StrategyImmediate ReplicationStrategy = "immediate"
	// StrategyLazy names replication deferred to a later flush.
	StrategyLazy ReplicationStrategy = "lazy"
	// StrategyOnDemand names replication when a target explicitly pulls.
	StrategyOnDemand ReplicationStrategy = "on_demand"
	// StrategySmart names immediate replication to active agents and lazy
	// replication to the rest.
	StrategySmart ReplicationStrategy = "smart"
)

// DefaultMaxReplicas bounds how many targets a single share fans out to.
const DefaultMaxReplicas = 50

// DefaultAccessCacheTTL is the per-entry TTL for the read-through cache.
const DefaultAccessCacheTTL = 60 * time.Second

// Sender delivers a share's payload to a single target agent, returning
// an error if the peer was unreachable. Implementations are the network
// boundary; the manager itself never talks to a transport directly.
type Sender func(ctx context.Context, targetAgentID string, share *model.SharedMemory) error

// Config bounds a Manager's replication behaviour.
type Config struct {
	Strategy      ReplicationStrategy
	MaxReplicas   int
	AccessCacheTTL time.Duration
}

// DefaultConfig returns sane bounds for interactive use.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyImmediate,
		MaxReplicas:    DefaultMaxReplicas,
		AccessCacheTTL: DefaultAccessCacheTTL,
	}
}

// Manager holds the share_id -> SharedMemory map plus pending sharing
// requests, per spec.md §4.10.
type Manager struct {
	cfg    Config
	sender Sender
	logger *logging.Logger
	clock  func() time.Time

	mu       sync.RWMutex
	shares   map[string]*model.SharedMemory
	requests map[string]*model.SharingRequest

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	memory    *model.SharedMemory
	expiresAt time.Time
}

// New constructs a Manager. sender may be nil, in which case replication
// always reports the target unreachable (no transport configured).
func New(cfg Config, sender Sender, logger *logging.Logger) *Manager {
	if cfg.MaxReplicas <= 0 {
		cfg.MaxReplicas = DefaultMaxReplicas
	}
	if cfg.AccessCacheTTL <= 0 {
		cfg.AccessCacheTTL = DefaultAccessCacheTTL
	}
	return &Manager{
		cfg:      cfg,
		sender:   sender,
		logger:   logger,
		clock:    time.Now,
		shares:   make(map[string]*model.SharedMemory),
		requests: make(map[string]*model.SharingRequest),
		cache:    make(map[string]cacheEntry),
	}
}

// Share publishes record to targets, merging partialPermissions over
// read-only-for-targets defaults, and fans replicas out to up to
// MaxReplicas targets before returning.
func (m *Manager) Share(ctx context.Context, record *model.Record, targets []string, partialPermissions model.Permissions) (*model.SharedMemory, error) {
	if record == nil || record.Content == "" {
		return nil, fmt.Errorf("%w: cannot share an empty record", errs.ErrInvalidContent)
	}

	perms := model.NewPermissions()
	for _, t := range targets {
		perms.Read[t] = true
	}
	perms.Merge(partialPermissions)

	now := m.clock()
	shared := &model.SharedMemory{
		Record:      *record,
		OwnerID:     record.AgentID,
		ShareID:     uuid.NewString(),
		Permissions: perms,
		SyncStatus:  model.SyncPending,
		Version:     1,
	}
	shared.Checksum = checksum(shared.Content)

	bounded := targets
	if len(bounded) > m.cfg.MaxReplicas {
		bounded = bounded[:m.cfg.MaxReplicas]
		if m.logger != nil {
			m.logger.Warn(ctx, "share targets truncated to max_replicas")
		}
	}

	m.mu.Lock()
	m.shares[shared.ShareID] = shared
	m.mu.Unlock()

	m.replicate(ctx, shared, bounded)

	m.mu.Lock()
	shared.SyncStatus = syncStatusFor(shared.Replicas)
	m.mu.Unlock()

	return cloneShared(shared), nil
}

// replicate pushes shared to every target in parallel via errgroup,
// recording a Replica per target. A send failure marks that replica
// unreachable but does not fail the group.
func (m *Manager) replicate(ctx context.Context, shared *model.SharedMemory, targets []string) {
	if len(targets) == 0 {
		return
	}

	replicas := make([]model.Replica, len(targets))
	g, gCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			status := model.ReplicaActive
			if m.sender == nil {
				status = model.ReplicaUnreachable
			} else if err := m.sender(gCtx, target, shared); err != nil {
				if m.logger != nil {
					m.logger.Warn(ctx, "replica delivery failed")
				}
				status = model.ReplicaUnreachable
			}
			metricDeliveries.WithLabelValues(string(status)).Inc()
			mu.Lock()
			replicas[i] = model.Replica{
				AgentID:   target,
				Version:   shared.Version,
				Timestamp: m.clock(),
				Status:    status,
				Checksum:  shared.Checksum,
				Location:  target,
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	shared.Replicas = replicas
	m.mu.Unlock()
}

func syncStatusFor(replicas []model.Replica) model.SyncStatus {
	for _, r := range replicas {
		if r.Status != model.ReplicaActive {
			return model.SyncConflict
		}
	}
	return model.SyncSynced
}

// Get returns a share by id, consulting the access cache (per-entry TTL,
// no size limit) first.
func (m *Manager) Get(ctx context.Context, shareID string) (*model.SharedMemory, error) {
	if cached := m.cacheGet(shareID); cached != nil {
		return cloneShared(cached), nil
	}
	m.mu.RLock()
	shared, ok := m.shares[shareID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: share %s", errs.ErrNotFound, shareID)
	}
	m.cacheSet(shareID, shared)
	return cloneShared(shared), nil
}

func (m *Manager) cacheGet(shareID string) *model.SharedMemory {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	entry, ok := m.cache[shareID]
	if !ok {
		return nil
	}
	if m.clock().After(entry.expiresAt) {
		delete(m.cache, shareID)
		return nil
	}
	return entry.memory
}

func (m *Manager) cacheSet(shareID string, shared *model.SharedMemory) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache[shareID] = cacheEntry{memory: shared, expiresAt: m.clock().Add(m.cfg.AccessCacheTTL)}
}

// Access authorises action by agentID against shareID per spec.md §4.10:
// the owner is always allowed; read additionally succeeds if the share
// is public or the agent is in the read set; every other action checks
// its own role set. Denied accesses are logged and recorded in the
// share's access history.
func (m *Manager) Access(ctx context.Context, shareID, agentID string, action model.AccessAction) (*model.SharedMemory, error) {
	m.mu.Lock()
	shared, ok := m.shares[shareID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: share %s", errs.ErrNotFound, shareID)
	}

	allowed := m.authorise(shared, agentID, action)
	shared.AppendAccess(model.AccessRecord{AgentID: agentID, Action: action, Allowed: allowed, Timestamp: m.clock()})
	m.mu.Unlock()

	if !allowed {
		if m.logger != nil {
			m.logger.Warn(ctx, "sharing access denied")
		}
		return nil, fmt.Errorf("%w: %s cannot %s share %s", errs.ErrPermissionDenied, agentID, action, shareID)
	}

	if action == model.ActionRead {
		m.cacheSet(shareID, shared)
	}
	return cloneShared(shared), nil
}

func (m *Manager) authorise(shared *model.SharedMemory, agentID string, action model.AccessAction) bool {
	if agentID == shared.OwnerID {
		return true
	}
	if shared.Permissions.Expired(m.clock()) {
		return false
	}
	switch action {
	case model.ActionRead:
		return shared.Permissions.Public || shared.Permissions.Read[agentID]
	case model.ActionWrite:
		return shared.Permissions.Write[agentID]
	case model.ActionDelete:
		return shared.Permissions.Delete[agentID]
	default:
		return false
	}
}

// Update applies a new content payload: bumps version, recomputes
// checksum, marks sync pending, then re-replicates to every existing
// replica target in parallel.
func (m *Manager) Update(ctx context.Context, shareID, newContent string) (*model.SharedMemory, error) {
	m.mu.Lock()
	shared, ok := m.shares[shareID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: share %s", errs.ErrNotFound, shareID)
	}
	shared.Content = newContent
	shared.Version++
	shared.Checksum = checksum(newContent)
	shared.SyncStatus = model.SyncPending
	targets := make([]string, len(shared.Replicas))
	for i, r := range shared.Replicas {
		targets[i] = r.AgentID
	}
	m.mu.Unlock()

	m.replicate(ctx, shared, targets)

	m.mu.Lock()
	shared.SyncStatus = syncStatusFor(shared.Replicas)
	m.mu.Unlock()
	return cloneShared(shared), nil
}

// Delete removes shareID after its replicas (conceptually) acknowledge
// removal; the manager does not await acknowledgement from unreachable
// peers.
func (m *Manager) Delete(ctx context.Context, shareID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[shareID]; !ok {
		return fmt.Errorf("%w: share %s", errs.ErrNotFound, shareID)
	}
	delete(m.shares, shareID)
	m.cacheMu.Lock()
	delete(m.cache, shareID)
	m.cacheMu.Unlock()
	return nil
}

// QueryFilter narrows Query's result set.
type QueryFilter struct {
	Agents             []string
	Types              []model.MemoryType
	Tags               []string
	Since, Until        time.Time
	RequirePermission   model.AccessAction
	ContentSubstring    string
	MetadataEquals      map[string]any
	SortBy              string // timestamp | relevance | access_count | version
}

// Query filters and sorts the manager's shares per spec.md §4.10.
func (m *Manager) Query(ctx context.Context, filter QueryFilter) []*model.SharedMemory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock()
	var out []*model.SharedMemory
	for _, s := range m.shares {
		if !matchesFilter(s, filter) {
			continue
		}
		out = append(out, s)
	}

	switch filter.SortBy {
	case "access_count":
		sort.Slice(out, func(i, j int) bool { return out[i].AccessCount > out[j].AccessCount })
	case "version":
		sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	case "relevance":
		sort.Slice(out, func(i, j int) bool {
			return relevance(out[i], filter, now) > relevance(out[j], filter, now)
		})
	default: // "timestamp" and unset
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}

	cloned := make([]*model.SharedMemory, len(out))
	for i, s := range out {
		cloned[i] = cloneShared(s)
	}
	return cloned
}

func matchesFilter(s *model.SharedMemory, f QueryFilter) bool {
	if len(f.Agents) > 0 && !contains(f.Agents, s.AgentID) && !contains(f.Agents, s.OwnerID) {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if s.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Tags) > 0 {
		if !tagsIntersect(s.Tags, f.Tags) {
			return false
		}
	}
	if !f.Since.IsZero() && s.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && s.CreatedAt.After(f.Until) {
		return false
	}
	if f.ContentSubstring != "" && !strings.Contains(strings.ToLower(s.Content), strings.ToLower(f.ContentSubstring)) {
		return false
	}
	if f.RequirePermission != "" {
		switch f.RequirePermission {
		case model.ActionWrite:
			if len(s.Permissions.Write) == 0 {
				return false
			}
		case model.ActionDelete:
			if len(s.Permissions.Delete) == 0 {
				return false
			}
		}
	}
	for k, v := range f.MetadataEquals {
		if s.Context[k] != v {
			return false
		}
	}
	return true
}

func tagsIntersect(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// relevance implements spec.md §4.10's scoring formula:
// 10*substring_match_count + 5*max(0,(max_age-age)/max_age) + 0.1*access_history.length + 0.5*version.
func relevance(s *model.SharedMemory, f QueryFilter, now time.Time) float64 {
	substringMatches := 0.0
	if f.ContentSubstring != "" {
		substringMatches = float64(strings.Count(strings.ToLower(s.Content), strings.ToLower(f.ContentSubstring)))
	}
	const maxAge = 365 * 24 * time.Hour
	age := now.Sub(s.CreatedAt)
	ageScore := 0.0
	if age < maxAge {
		ageScore = float64(maxAge-age) / float64(maxAge)
	}
	return 10*substringMatches + 5*ageScore + 0.1*float64(len(s.AccessHistory)) + 0.5*float64(s.Version)
}

// RequestAccess creates a pending SharingRequest for additional
// permissions on shareID.
func (m *Manager) RequestAccess(ctx context.Context, shareID, requesterID string, requested model.Permissions, message string) (*model.SharingRequest, error) {
	m.mu.RLock()
	_, ok := m.shares[shareID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: share %s", errs.ErrNotFound, shareID)
	}

	req := &model.SharingRequest{
		ID:          uuid.NewString(),
		ShareID:     shareID,
		RequesterID: requesterID,
		Requested:   requested,
		Message:     message,
		Status:      model.RequestPending,
		CreatedAt:   m.clock(),
	}
	m.mu.Lock()
	m.requests[req.ID] = req
	m.mu.Unlock()
	return req, nil
}

// Respond records approved's decision against requestID. On approval
// the target share's permissions are merged with the requested grant
// and propagated to its replicas.
func (m *Manager) Respond(ctx context.Context, requestID, agentID string, approved bool, grantedPerms *model.Permissions, message string) (*model.SharingRequest, error) {
	m.mu.Lock()
	req, ok := m.requests[requestID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: sharing request %s", errs.ErrNotFound, requestID)
	}
	req.Responses = append(req.Responses, model.SharingResponse{AgentID: agentID, Approved: approved, Message: message, Timestamp: m.clock()})

	var shared *model.SharedMemory
	if approved {
		req.Status = model.RequestApproved
		shared, ok = m.shares[req.ShareID]
		if ok {
			grant := req.Requested
			if grantedPerms != nil {
				grant = *grantedPerms
			}
			shared.Permissions.Merge(grant)
		}
	} else {
		req.Status = model.RequestDenied
	}
	targets := []string{}
	if shared != nil {
		for _, r := range shared.Replicas {
			targets = append(targets, r.AgentID)
		}
	}
	m.mu.Unlock()

	if shared != nil {
		m.replicate(ctx, shared, targets)
	}
	return req, nil
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func cloneShared(s *model.SharedMemory) *model.SharedMemory {
	c := *s
	c.Permissions = s.Permissions.Clone()
	c.Tags = append([]string{}, s.Tags...)
	c.AccessHistory = append([]model.AccessRecord{}, s.AccessHistory...)
	c.Replicas = append([]model.Replica{}, s.Replicas...)
	if s.Context != nil {
		ctxCopy := make(map[string]any, len(s.Context))
		for k, v := range s.Context {
			ctxCopy[k] = v
		}
		c.Context = ctxCopy
	}
	return &c
}
