// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/memforge/memengine/internal/config"
	"github.com/memforge/memengine/internal/logging"
)

// NewStore creates a new Store based on the configuration.
//
// NewStore examines cfg.VectorDB.Provider and creates the appropriate
// store implementation:
//   - "chromem" (default): an embedded ChromemStore, no external deps
//   - "qdrant": a QdrantStore, requires a running Qdrant gRPC service
//
// Example usage:
//
//	cfg, err := config.Load()
//	store, err := vectorstore.NewStore(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func NewStore(cfg *config.Config, logger *logging.Logger) (Store, error) {
	switch cfg.VectorDB.Provider {
	case "chromem", "":
		chromemCfg := ChromemConfig{
			Path:       cfg.VectorDB.URL,
			Collection: cfg.VectorDB.Collection,
			VectorSize: cfg.VectorDB.Dimension,
		}
		return NewChromemStore(chromemCfg, logger)

	case "qdrant":
		host, port, err := splitHostPort(cfg.VectorDB.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: vector_db.url: %v", ErrInvalidConfig, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%w: vector_db.url port: %v", ErrInvalidConfig, err)
		}
		qdrantCfg := QdrantStoreConfig{
			Host:       host,
			Port:       portNum,
			APIKey:     cfg.VectorDB.APIKey.Value(),
			Collection: cfg.VectorDB.Collection,
			VectorSize: cfg.VectorDB.Dimension,
		}
		return NewQdrantStore(qdrantCfg, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vector_db.provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.VectorDB.Provider)
	}
}

// splitHostPort parses a "host:port" address. config.Config.Validate
// already verified this shape before NewStore is ever called for qdrant.
func splitHostPort(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("address %q has no port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}
