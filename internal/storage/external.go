package storage

import (
	"context"
	"fmt"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/model"
)

// ExternalAdapter is a placeholder for a future managed-database backend
// (e.g. Postgres or a hosted document store). spec.md scopes the shipped
// backends to in-process and file-backed storage; this stub exists so C6's
// tier detector has a concrete "configured but unavailable" adapter to
// fall back away from rather than a missing case in the provider switch.
type ExternalAdapter struct {
	endpoint string
}

// NewExternalAdapter records the configured endpoint; every operation
// returns errs.ErrAdapterNotInitialised until a real backend is wired in.
func NewExternalAdapter(endpoint string) *ExternalAdapter {
	return &ExternalAdapter{endpoint: endpoint}
}

func (a *ExternalAdapter) unavailable() error {
	return fmt.Errorf("%w: external storage adapter (%s) is not implemented", errs.ErrAdapterNotInitialised, a.endpoint)
}

func (a *ExternalAdapter) Put(ctx context.Context, rec *model.Record) error { return a.unavailable() }

func (a *ExternalAdapter) Get(ctx context.Context, tenantID, id string) (*model.Record, error) {
	return nil, a.unavailable()
}

func (a *ExternalAdapter) List(ctx context.Context, tenantID string) ([]*model.Record, error) {
	return nil, a.unavailable()
}

func (a *ExternalAdapter) Delete(ctx context.Context, tenantID, id string) error {
	return a.unavailable()
}

func (a *ExternalAdapter) Count(ctx context.Context, tenantID string) (int, error) {
	return 0, a.unavailable()
}

func (a *ExternalAdapter) Health(ctx context.Context) error { return a.unavailable() }

func (a *ExternalAdapter) Close() error { return nil }
