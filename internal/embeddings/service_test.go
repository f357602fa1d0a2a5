package embeddings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memforge/memengine/internal/errs"
)

func TestMockProviderDeterministic(t *testing.T) {
	p := NewMockProvider(16)
	v1, err := p.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := p.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	v3, err := p.EmbedQuery(context.Background(), "different text")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
	assert.Len(t, v1, 16)
}

func TestMockProviderBatch(t *testing.T) {
	p := NewMockProvider(8)
	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[2])
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestMockProviderFailureRate(t *testing.T) {
	p := NewMockProvider(4).WithFailureRate(0.5)
	var failures int
	for i := 0; i < 10; i++ {
		if _, err := p.EmbedQuery(context.Background(), "x"); err != nil {
			failures++
			assert.ErrorIs(t, err, errs.ErrEmbeddingFailed)
		}
	}
	assert.Equal(t, 5, failures)
}

func TestMockProviderLatencyCancellation(t *testing.T) {
	p := NewMockProvider(4).WithLatency(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.EmbedQuery(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceEmbedRejectsEmpty(t *testing.T) {
	svc := NewService(NewMockProvider(4), "mock")
	_, err := svc.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, errs.ErrEmbeddingFailed)
}

func TestServiceEmbedAndBatch(t *testing.T) {
	svc := NewService(NewMockProvider(4), "mock-v1")
	res, err := svc.Embed(context.Background(), "remember this")
	require.NoError(t, err)
	assert.Equal(t, "mock-v1", res.Model)
	assert.Equal(t, 4, res.Dimension)
	assert.Len(t, res.Vector, 4)

	batch, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	for _, r := range batch {
		assert.Equal(t, "mock-v1", r.Model)
	}
}

func TestNewProviderSelection(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: ProviderMock, Dimension: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, p.Dimension())

	_, err = NewProvider(ProviderConfig{Provider: "bogus"})
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestRemoteProviderRequiresEndpointAndModel(t *testing.T) {
	_, err := NewRemoteProvider(RemoteConfig{Model: "m"})
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	_, err = NewRemoteProvider(RemoteConfig{Endpoint: "http://localhost"})
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestRemoteProviderEmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[0.1,0.2,0.3]]`))
	}))
	defer srv.Close()

	p, err := NewRemoteProvider(RemoteConfig{Endpoint: srv.URL, Model: "remote-model", Dimension: 3})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, p.Dimension())
}

func TestRemoteProviderPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	p, err := NewRemoteProvider(RemoteConfig{Endpoint: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrEmbeddingFailed))
}

func TestRemoteProviderRejectsEmptyBatch(t *testing.T) {
	p, err := NewRemoteProvider(RemoteConfig{Endpoint: "http://localhost", Model: "m"})
	require.NoError(t, err)
	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrEmbeddingFailed)
}
