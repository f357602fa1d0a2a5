// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/memforge/memengine/internal/logging"
)

// HealthChecker reports backend reachability independent of transport,
// letting C6's Tier Detector (spec.md §4.7) probe a store without caring
// whether it's chromem or Qdrant underneath.
type HealthChecker interface {
	// IsHealthy returns true if the backend is reachable and usable.
	IsHealthy(ctx context.Context) bool
}

// StoreHealthChecker adapts any Store's Health method into a HealthChecker.
type StoreHealthChecker struct {
	store Store
}

// NewStoreHealthChecker wraps a Store for use with HealthMonitor.
func NewStoreHealthChecker(store Store) *StoreHealthChecker {
	return &StoreHealthChecker{store: store}
}

// IsHealthy calls the underlying store's Health check.
func (c *StoreHealthChecker) IsHealthy(ctx context.Context) bool {
	return c.store.Health(ctx) == nil
}

// MockHealthChecker is a test double with a directly settable status.
type MockHealthChecker struct {
	healthy atomic.Bool
}

// NewMockHealthChecker creates a new mock health checker.
func NewMockHealthChecker() *MockHealthChecker {
	return &MockHealthChecker{}
}

// IsHealthy returns the mock health status.
func (m *MockHealthChecker) IsHealthy(ctx context.Context) bool {
	return m.healthy.Load()
}

// SetHealthy sets the mock health status.
func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.healthy.Store(healthy)
}

// HealthMonitor periodically polls a HealthChecker and notifies
// registered callbacks when health status changes, driving C6's
// capability-tier fallback (spec.md §4.7: advanced -> smart -> basic -> mock).
type HealthMonitor struct {
	checker       HealthChecker
	healthy       atomic.Bool
	lastCheck     atomic.Value
	checkInterval time.Duration
	mu            sync.RWMutex
	callbacks     []func(bool)
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *logging.Logger
}

// NewHealthMonitor creates a new health monitor and seeds its initial state.
func NewHealthMonitor(ctx context.Context, checker HealthChecker, checkInterval time.Duration, logger *logging.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(ctx)
	hm := &HealthMonitor{
		checker:       checker,
		checkInterval: checkInterval,
		callbacks:     make([]func(bool), 0),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
	}
	hm.healthy.Store(checker.IsHealthy(ctx))
	hm.lastCheck.Store(time.Now())
	return hm
}

// Start begins periodic health polling in the background.
func (hm *HealthMonitor) Start() {
	go hm.runPeriodicCheck()
}

func (hm *HealthMonitor) runPeriodicCheck() {
	ticker := time.NewTicker(hm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hm.ctx.Done():
			return
		case <-ticker.C:
			hm.updateHealth(hm.checker.IsHealthy(hm.ctx))
		}
	}
}

func (hm *HealthMonitor) updateHealth(healthy bool) {
	oldHealth := hm.healthy.Load()
	hm.healthy.Store(healthy)
	hm.lastCheck.Store(time.Now())

	if oldHealth != healthy {
		hm.logger.Info(hm.ctx, "health status changed", zap.Bool("healthy", healthy), zap.Bool("previous", oldHealth))
		hm.notifyCallbacks(healthy)
	}
}

// IsHealthy returns the current health status.
func (hm *HealthMonitor) IsHealthy() bool {
	return hm.healthy.Load()
}

// LastCheck returns the time of the last health check.
func (hm *HealthMonitor) LastCheck() time.Time {
	v := hm.lastCheck.Load()
	if v == nil {
		return time.Time{}
	}
	return v.(time.Time)
}

// RegisterCallback adds a callback invoked whenever health status changes.
func (hm *HealthMonitor) RegisterCallback(cb func(bool)) error {
	if cb == nil {
		return fmt.Errorf("health: callback cannot be nil")
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.callbacks = append(hm.callbacks, cb)
	return nil
}

func (hm *HealthMonitor) notifyCallbacks(healthy bool) {
	hm.mu.RLock()
	callbacks := make([]func(bool), len(hm.callbacks))
	copy(callbacks, hm.callbacks)
	hm.mu.RUnlock()

	for _, cb := range callbacks {
		go func(callback func(bool)) {
			defer func() {
				if r := recover(); r != nil {
					hm.logger.Error(hm.ctx, "health callback panic", zap.Any("panic", r))
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			done := make(chan struct{})
			go func() {
				callback(healthy)
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				hm.logger.Warn(hm.ctx, "health callback timeout", zap.Duration("timeout", 5*time.Second))
			}
		}(cb)
	}
}

// Stop gracefully shuts down the health monitor.
func (hm *HealthMonitor) Stop() {
	hm.cancel()
}
