// Package vectorstore implements the C2 Vector Store (spec.md §4.3):
// initialize, upsert, search, delete, count and health over one of two
// backends behind a shared Store interface - chromem-go (embedded,
// in-process, the default) or Qdrant (external, gRPC).
//
// # Usage
//
//	cfg, err := config.Load()
//	store, err := vectorstore.NewStore(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if err := store.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	vector, err := embedder.EmbedQuery(ctx, "user prefers dark mode")
//	err = store.Upsert(ctx, &record, vector)
//
//	results, err := store.Search(ctx, vector, vectorstore.Query{
//	    TenantID:  "org-123",
//	    Limit:     10,
//	    Threshold: 0.7,
//	    TimeDecay: true,
//	})
//
// # Tenant isolation
//
// Every Query requires TenantID; both backends filter on it at the
// storage layer and Get/Delete additionally re-check ownership on
// returned records, so a forged ID never crosses tenant boundaries.
//
// # Provider selection
//
// cfg.VectorDB.Provider selects the backend explicitly ("chromem" or
// "qdrant", spec.md §4.1) rather than inferring it from the URL shape.
package vectorstore
