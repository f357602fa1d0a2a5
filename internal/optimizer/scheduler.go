package optimizer

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/memforge/memengine/internal/logging"
)

// Scheduler runs Optimize across a fixed set of tenants on a cron
// schedule, grounded on the rag-loader example's cron.Cron-backed
// scheduler: AddFunc registers the sweep, Start/Stop drive the loop.
type Scheduler struct {
	cronSpec  string
	optimizer *Optimizer
	tenantIDs []string
	logger    *logging.Logger

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewScheduler creates a scheduler that is not yet running; call Start to
// begin ticking. cronSpec follows robfig/cron syntax, including the
// "@every <duration>" shorthand.
func NewScheduler(optimizer *Optimizer, cronSpec string, tenantIDs []string, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cronSpec:  cronSpec,
		optimizer: optimizer,
		tenantIDs: tenantIDs,
		logger:    logger,
	}
}

// Start launches the background cron loop. Calling Start twice is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	c := cron.New()
	entryID, err := c.AddFunc(s.cronSpec, func() { s.runOnce(ctx) })
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, "invalid optimiser cron schedule, scheduler not started", zap.String("cron_spec", s.cronSpec), zap.Error(err))
		}
		return
	}

	s.cron = c
	s.entryID = entryID
	s.running = true
	c.Start()
}

// runOnce optimises every configured tenant; a failure for one tenant is
// logged and does not abort the remaining tenants.
func (s *Scheduler) runOnce(ctx context.Context) {
	for _, tenantID := range s.tenantIDs {
		if _, err := s.optimizer.Optimize(ctx, tenantID); err != nil && s.logger != nil {
			s.logger.Warn(ctx, "scheduled optimisation failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
}

// Stop signals the loop to exit and waits for any in-flight run to
// finish. Safe to call on a scheduler that was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	<-s.cron.Stop().Done()
}
