package storage

import (
	"fmt"
	"path/filepath"

	"github.com/memforge/memengine/internal/errs"
)

// Provider selects a storage backend at startup.
type Provider string

const (
	ProviderMemory   Provider = "memory"
	ProviderFile     Provider = "file"
	ProviderExternal Provider = "external"
)

// New constructs an Adapter for the given provider. dataDir is used by the
// file provider to place its JSON document; endpoint is used by the
// external provider to record its (currently unreachable) target.
func New(provider Provider, dataDir, endpoint string) (Adapter, error) {
	switch provider {
	case ProviderMemory, "":
		return NewMemoryAdapter(), nil
	case ProviderFile:
		return NewFileAdapter(filepath.Join(dataDir, "records.json"))
	case ProviderExternal:
		return NewExternalAdapter(endpoint), nil
	default:
		return nil, fmt.Errorf("%w: unsupported storage provider %q", errs.ErrInvalidConfiguration, provider)
	}
}
