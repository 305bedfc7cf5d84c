// Package di wires the application components in explicit construction
// order, failing fast on anything that would leave the service unable to
// answer: an unknown backend name, an unreachable database, invalid pipeline
// parameters.
package di

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"rag-agent/agent"
	"rag-agent/internal/adapter/cache"
	"rag-agent/internal/adapter/ollama"
	memorystore "rag-agent/internal/adapter/store/memory"
	pgstore "rag-agent/internal/adapter/store/postgres"
	"rag-agent/internal/domain"
	"rag-agent/internal/infra"
	"rag-agent/internal/infra/config"
	"rag-agent/internal/infra/observability"
	"rag-agent/internal/infra/resilience"
	"rag-agent/internal/usecase"
	"rag-agent/internal/worker"
)

// ChunkBackend is the full surface a storage backend must provide:
// persistence for ingest, retrieval for the pipeline, the collection
// catalog, and liveness for the readiness probe. Both the PostgreSQL and the
// in-memory store satisfy it.
type ChunkBackend interface {
	domain.ChunkStore
	domain.Pinger
	agent.Searcher
	agent.CatalogSource
}

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Storage
	Store ChunkBackend
	Cache domain.AnswerCache

	// External clients
	LLM      *ollama.Client
	Embedder *ollama.Embedder

	// Pipeline
	Agent   *agent.Agent
	Metrics *observability.PromEmitter

	// Usecases
	AskUsecase    usecase.AskUsecase
	SearchUsecase usecase.SearchUsecase
	IngestUsecase usecase.IngestUsecase

	// Worker
	Refresher *worker.CatalogRefresher

	pool *pgxpool.Pool
}

// NewApplicationComponents wires all dependencies from config.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, error) {
	c := &ApplicationComponents{}

	// External clients. Rate limiting and retry/breaker policy live inside
	// the adapters, so every caller gets them for free.
	exec := resilience.NewExecutor(resilience.DefaultConfig(), log)
	c.LLM = ollama.NewClient(cfg.Ollama, exec, log)
	c.Embedder = ollama.NewEmbedder(cfg.Ollama, exec, log)

	// Storage backend
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := infra.NewPostgresDB(ctx, cfg.DB.DSN(), infra.PoolConfig{
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store := pgstore.New(pool, c.Embedder, cfg.Store.EmbedDim, log)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		c.pool = pool
		c.Store = store
	case "memory":
		store, err := memorystore.New(c.Embedder, log)
		if err != nil {
			return nil, fmt.Errorf("failed to build memory store: %w", err)
		}
		c.Store = store
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	log.Info("store_backend_ready", slog.String("backend", cfg.Store.Backend))

	// Answer cache. A nil cache disables caching; the ask usecase skips
	// lookups entirely.
	switch cfg.Cache.Backend {
	case "lru":
		c.Cache = cache.NewLRU(cfg.Cache.Size, cfg.Cache.TTL)
		log.Info("answer_cache_enabled",
			slog.String("backend", "lru"),
			slog.Int("size", cfg.Cache.Size),
			slog.Duration("ttl", cfg.Cache.TTL))
	case "redis":
		c.Cache = cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.TTL, log)
		log.Info("answer_cache_enabled",
			slog.String("backend", "redis"),
			slog.String("addr", cfg.Cache.RedisAddr))
	case "none":
	default:
		c.Close()
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	// Telemetry emitters
	c.Metrics = observability.NewPromEmitter()
	emitters := observability.MultiEmitter{observability.NewSlogEmitter(log), c.Metrics}
	if cfg.Otel.Enabled() {
		emitters = append(emitters, observability.NewOTelEmitter())
	}

	// The catalog refresher doubles as the select stage's catalog source, so
	// pipeline runs read the snapshot instead of hitting the store.
	c.Refresher = worker.NewCatalogRefresher(c.Store, cfg.Worker.CatalogRefreshInterval, log)

	// Pipeline
	ag, err := agent.New(
		agent.WithLLM(c.LLM),
		agent.WithSearcher(c.Store),
		agent.WithCatalogSource(c.Refresher),
		agent.WithConfig(agentConfig(cfg.Agent)),
		agent.WithLogger(log),
		agent.WithTelemetry(emitters),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build agent: %w", err)
	}
	c.Agent = ag

	// Usecases
	defaults := usecase.RetrievalDefaults{
		Limit:     cfg.Agent.SearchLimit,
		Threshold: cfg.Agent.ScoreThreshold,
	}
	c.AskUsecase = usecase.NewAskUsecase(ag, c.Cache, cfg.Ollama.Model, log, usecase.WithAskDefaults(defaults))
	c.SearchUsecase = usecase.NewSearchUsecase(ag, log, usecase.WithSearchDefaults(defaults))
	c.IngestUsecase = usecase.NewIngestUsecase(c.Store, c.Embedder, log)

	return c, nil
}

// Close releases held connections. Safe to call after a partial construction
// failure and after the server stops.
func (c *ApplicationComponents) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
	if closer, ok := c.Cache.(io.Closer); ok {
		_ = closer.Close()
	}
}

// agentConfig maps the env-derived settings onto the pipeline configuration.
// Validation happens inside agent.New.
func agentConfig(cfg config.AgentConfig) agent.Config {
	out := agent.DefaultConfig()
	out.Search.Mode = agent.SearchMode(cfg.SearchMode)
	out.Search.Fusion.K = cfg.RRFK
	out.Search.Fusion.SemanticWeight = cfg.SemanticWeight
	out.Search.Fusion.FulltextWeight = cfg.FulltextWeight
	out.Search.MaxConcurrency = cfg.SearchConcurrency
	out.Rerank.Threshold = cfg.RerankThreshold
	out.Rerank.MaxCandidates = cfg.RerankMaxCandidates
	out.Loops.MaxIterations = cfg.MaxIterations
	out.Loops.MaxCorrections = cfg.MaxCorrections
	out.Pipeline = agent.PipelineConfig{
		Rewrite:           cfg.EnableRewrite,
		Expand:            cfg.EnableExpand,
		Decompose:         cfg.EnableDecompose,
		SelectCollections: cfg.EnableSelect,
		Rerank:            cfg.EnableRerank,
		SelfCorrectSearch: cfg.SelfCorrectSearch,
		SelfCorrectAnswer: cfg.SelfCorrectAnswer,
	}
	return out
}
