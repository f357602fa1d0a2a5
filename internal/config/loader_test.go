package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoEnv(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.VectorDB.Provider)
	assert.Equal(t, "memories", cfg.VectorDB.Collection)
	assert.Equal(t, 384, cfg.VectorDB.Dimension)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("MEMENGINE_VECTOR_DB_PROVIDER", "qdrant")
	t.Setenv("MEMENGINE_VECTOR_DB_URL", "localhost:6334")
	t.Setenv("MEMENGINE_VECTOR_DB_COLLECTION", "custom_memories")
	t.Setenv("MEMENGINE_EMBEDDING_PROVIDER", "remote")
	t.Setenv("MEMENGINE_EMBEDDING_ENDPOINT", "http://localhost:8081")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.VectorDB.Provider)
	assert.Equal(t, "localhost:6334", cfg.VectorDB.URL)
	assert.Equal(t, "custom_memories", cfg.VectorDB.Collection)
	assert.Equal(t, "remote", cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:8081", cfg.Embedding.Endpoint)
}

func TestLoad_InvalidEnvFailsValidation(t *testing.T) {
	t.Setenv("MEMENGINE_VECTOR_DB_PROVIDER", "not-a-real-backend")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_IgnoresUnrelatedEnv(t *testing.T) {
	require.NoError(t, os.Setenv("UNRELATED_APP_SETTING", "value"))
	t.Cleanup(func() { os.Unsetenv("UNRELATED_APP_SETTING") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.VectorDB.Provider)
}

func TestEnvTransform_MatchesKnownSection(t *testing.T) {
	assert.Equal(t, "vector_db.provider", envTransform("VECTOR_DB_PROVIDER"))
	assert.Equal(t, "cache.url", envTransform("CACHE_URL"))
	assert.Equal(t, "embedding.api_key", envTransform("EMBEDDING_API_KEY"))
}
