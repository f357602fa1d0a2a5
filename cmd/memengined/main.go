// Command memengined is the agent memory engine daemon.
//
// It loads configuration from the environment, wires the tiered memory
// engine (storage -> embeddings -> vector store -> memory engine), starts
// the background optimiser and conflict-resolution schedulers, and serves
// the memory engine's tool surface over MCP on stdio. A standalone HTTP
// façade, if one is ever needed, would attach to the same
// *memoryengine.Engine this binary builds.
//
// Configuration is loaded from environment variables. See internal/config
// for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	memengined
//
//	# Configure via environment
//	MEMENGINE_VECTOR_DB_PROVIDER=qdrant MEMENGINE_VECTOR_DB_URL=localhost:6334 memengined
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memforge/memengine/internal/autonomous"
	"github.com/memforge/memengine/internal/classifier"
	"github.com/memforge/memengine/internal/conflict"
	"github.com/memforge/memengine/internal/config"
	"github.com/memforge/memengine/internal/embeddings"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/mcp"
	"github.com/memforge/memengine/internal/memoryengine"
	"github.com/memforge/memengine/internal/model"
	"github.com/memforge/memengine/internal/optimizer"
	"github.com/memforge/memengine/internal/relationship"
	"github.com/memforge/memengine/internal/sharing"
	"github.com/memforge/memengine/internal/storage"
	"github.com/memforge/memengine/internal/tier"
	"github.com/memforge/memengine/internal/vectorstore"
)

// Version information (set via ldflags during build).
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// defaultOptimizeSchedule is how often the hygiene scheduler sweeps every
// known tenant for deduplication and eviction, in robfig/cron syntax.
const defaultOptimizeSchedule = "@every 6h"

// metricsAddr is the listen address for the Prometheus /metrics endpoint;
// empty disables the listener.
var metricsAddr string

// noopSender is the fallback sharing delivery function used when no NATS
// URL is configured: memengined itself has no transport to other agents,
// so replication succeeds locally and cross-process delivery is skipped.
func noopSender(ctx context.Context, targetAgentID string, share *model.SharedMemory) error {
	return nil
}

var rootCmd = &cobra.Command{
	Use:     "memengined",
	Short:   "Agent memory engine daemon",
	Long:    "memengined wires the tiered memory engine and serves its tool surface over MCP on stdio.",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			log.Printf("received signal %v, shutting down gracefully...", sig)
			cancel()
		}()

		return run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("memengined by memforge\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9464", "Prometheus /metrics listen address, empty to disable")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("memengined error: %v", err)
	}
	log.Println("memengined shutdown complete")
}

// run loads configuration, wires every component named in SPEC_FULL.md's
// structure section, starts the background schedulers, and blocks until
// ctx is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer logger.Sync()

	logger.Info(ctx, "starting memengined",
		zap.String("vector_db_provider", cfg.VectorDB.Provider),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialising dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info(ctx, "dependencies initialised",
		zap.String("active_tier", string(deps.tierEngine.CurrentTier())))

	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr, logger)
	}

	svcs := initServices(deps, logger)

	svcs.optimizerScheduler.Start(ctx)
	defer svcs.optimizerScheduler.Stop()

	svcs.conflictResolver.Start(ctx)
	defer svcs.conflictResolver.Stop()

	mcpServer, err := mcp.NewServer(mcp.DefaultConfig(), deps.engine, svcs.relationships, svcs.sharingManager, svcs.conflictResolver, logger)
	if err != nil {
		return fmt.Errorf("constructing mcp server: %w", err)
	}

	logger.Info(ctx, "memengined ready, serving MCP tools on stdio")
	if err := mcpServer.Run(ctx); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	logger.Info(ctx, "shutdown signal received, draining background work")
	return nil
}

// startMetricsServer exposes the process's registered Prometheus
// collectors (internal/optimizer, internal/sharing, internal/conflict)
// over HTTP, grounded on the teacher's echo.WrapHandler(promhttp.Handler())
// route. memengined has no other HTTP surface, so a bare net/http server
// is enough here rather than pulling in a full router.
func startMetricsServer(ctx context.Context, addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn(ctx, "metrics server exited", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	lcfg := logging.NewDefaultConfig()
	if cfg.Logging.Level != "" {
		if err := lcfg.Level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			return nil, fmt.Errorf("parsing logging.level %q: %w", cfg.Logging.Level, err)
		}
	}
	if cfg.Logging.Format != "" {
		lcfg.Format = cfg.Logging.Format
	}
	lcfg.Fields = map[string]string{"service": "memengined"}
	return logging.NewLogger(lcfg, nil)
}

// dependencies holds every leaf and orchestration component memengined
// wires; Close shuts down the NATS connection, the vector store and the
// embedding provider, in that order.
type dependencies struct {
	cfg        *config.Config
	logger     *logging.Logger
	storage    storage.Adapter
	vectors    vectorstore.Store
	embedder   *embeddings.Service
	tierEngine *tier.Engine
	engine     *memoryengine.Engine
	natsConn   *nats.Conn
}

func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.vectors != nil {
		if err := d.vectors.Close(); err != nil {
			d.logger.Warn(context.Background(), "closing vector store", zap.Error(err))
		}
	}
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			d.logger.Warn(context.Background(), "closing embedding provider", zap.Error(err))
		}
	}
}

// initDependencies builds storage, the embedding provider, the vector
// store, and the tiered memory engine. Capability probing (network
// reachability, credential presence, local-model availability) follows
// spec.md §4.7 C6's tier detector: the engine starts at the highest
// feasible tier and falls back on init failure.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	st, err := storage.New(storage.ProviderMemory, "", "")
	if err != nil {
		return nil, fmt.Errorf("constructing storage adapter: %w", err)
	}

	vs, err := vectorstore.NewStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("constructing vector store: %w", err)
	}
	if err := vs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialising vector store: %w", err)
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   embeddings.ProviderKind(cfg.Embedding.Provider),
		Model:      cfg.Embedding.Model,
		Endpoint:   cfg.Embedding.Endpoint,
		APIKey:     cfg.Embedding.APIKey.Value(),
		OAuthToken: cfg.Embedding.OAuthToken.Value(),
		Dimension:  cfg.VectorDB.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing embedding provider: %w", err)
	}
	embedder := embeddings.NewService(provider, cfg.Embedding.Model)

	caps := tier.Capabilities{
		NetworkReachable:    cfg.Embedding.Provider == "remote" && cfg.Embedding.Endpoint != "",
		EmbeddingCredential: cfg.Embedding.APIKey.IsSet() || cfg.Embedding.OAuthToken.IsSet(),
		LocalModelAvailable: cfg.Embedding.Provider == "local",
	}

	cls := classifier.NewRegexClassifier()
	scorer := classifier.NewHeuristicScorer()

	engine := memoryengine.New(st, vs, embedder, cls, scorer, logger)
	tierEngine, err := tier.NewEngine(func(t tier.Tier) (any, error) {
		// The unified engine currently exposes a single wired stack;
		// a lower tier falling back here would substitute a
		// MockProvider-backed embedder/store (left as future work,
		// see DESIGN.md).
		return engine, nil
	}, "", caps)
	if err != nil {
		return nil, fmt.Errorf("detecting capability tier: %w", err)
	}
	tierEngine.OnFallback(func(from, to tier.Tier, cause error) {
		logger.Warn(ctx, "memory engine fell back to a lower capability tier",
			zap.String("from", string(from)), zap.String("to", string(to)), zap.Error(cause))
	})

	var natsConn *nats.Conn
	if cfg.Sharing.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.Sharing.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(time.Second))
		if err != nil {
			return nil, fmt.Errorf("connecting to sharing nats bus: %w", err)
		}
	}

	return &dependencies{
		cfg:        cfg,
		logger:     logger,
		storage:    st,
		vectors:    vs,
		embedder:   embedder,
		tierEngine: tierEngine,
		engine:     engine,
		natsConn:   natsConn,
	}, nil
}

// services holds the orchestration layer built on top of dependencies:
// relationships, sharing, conflict resolution, hygiene, and autonomous
// optimisation.
type services struct {
	relationships      *relationship.Manager
	sharingManager     *sharing.Manager
	conflictResolver   *conflict.Resolver
	optimizerScheduler *optimizer.Scheduler
	autonomousEngine   *autonomous.Engine
}

func initServices(deps *dependencies, logger *logging.Logger) *services {
	relMgr := relationship.New(logger)

	sender := sharing.Sender(noopSender)
	if deps.natsConn != nil {
		sender = sharing.NewNATSSender(deps.natsConn, logger).Send
	}
	shareMgr := sharing.New(sharing.DefaultConfig(), sender, logger)

	resolver := conflict.NewResolver(nil, nil, nil, nil, "", logger)

	opt := optimizer.New(deps.storage, deps.vectors, optimizer.DefaultConfig(), logger)
	sched := optimizer.NewScheduler(opt, defaultOptimizeSchedule, nil, logger)

	autoEngine := autonomous.New(func(ctx context.Context) (autonomous.Context, error) {
		return autonomous.Context{}, nil
	}, 3, logger)

	return &services{
		relationships:      relMgr,
		sharingManager:     shareMgr,
		conflictResolver:   resolver,
		optimizerScheduler: sched,
		autonomousEngine:   autoEngine,
	}
}
