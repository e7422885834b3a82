package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/commerce-rag/internal/config"
	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
	"github.com/kirillkom/commerce-rag/internal/core/usecase"
	rediscache "github.com/kirillkom/commerce-rag/internal/infrastructure/cache/redis"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/vector/qdrant"
)

// Options carries the per-binary observability hooks.
type Options struct {
	Observer             ports.RetrievalObserver
	OnBreakerStateChange resilience.StateListener
}

type App struct {
	Config config.Config

	Queue   *nats.Queue
	Sources ports.SourceRepository
	Router  *usecase.IntentRouter

	Aggregator *usecase.Aggregator
	AskUC      *usecase.AskUseCase
	IngestUC   *usecase.IngestSourceUseCase
	ProcessUC  *usecase.ProcessSourceUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	rules, err := config.LoadRoutingRules(cfg.RoutingRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load routing rules: %w", err)
	}
	policy, err := usecase.ParseDomainPolicy(cfg.RAGDomainPolicy)
	if err != nil {
		return nil, fmt.Errorf("domain policy: %w", err)
	}

	executor := resilience.NewExecutor(cfg.Resilience)
	if opts.OnBreakerStateChange != nil {
		executor.OnStateChange(opts.OnBreakerStateChange)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	sources := postgres.NewSourceRepository(db)
	events := postgres.NewEventRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, generator, err := buildProviders(cfg, executor)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient = rediscache.NewClient(rediscache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			slog.Warn("embedding_cache_unavailable", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		embedder = rediscache.NewCachedEmbedder(
			embedder,
			redisClient,
			embeddingNamespace(cfg),
			time.Duration(cfg.EmbedCacheTTLSeconds)*time.Second,
		)
	}

	store := qdrant.NewWithOptions(cfg.QdrantURL, qdrant.Options{
		APIKey:             cfg.QdrantAPIKey,
		ResilienceExecutor: executor,
	})

	routingRules := usecase.RoutingRules{
		PolicyKeywords:         rules.PolicyKeywords,
		ProductContextKeywords: rules.ProductContextKeywords,
		PolicyTypeKeywords:     rules.PolicyTypeKeywords,
	}
	router := usecase.NewIntentRouter(routingRules)
	aggregator := usecase.NewAggregator(
		router,
		usecase.NewDomainStrategies(embedder, store, routingRules),
		usecase.AggregatorOptions{
			Policy:       policy,
			DefaultLimit: cfg.RAGTopK,
			Invoker:      usecase.NewInvoker(time.Duration(cfg.RAGDomainTimeoutMS) * time.Millisecond),
			Observer:     opts.Observer,
		},
	)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	recordExtractor := extractor.New(storage)

	app := &App{
		Config:     cfg,
		Queue:      queue,
		Sources:    sources,
		Router:     router,
		Aggregator: aggregator,
		AskUC:      usecase.NewAskUseCase(aggregator, generator, events),
		IngestUC:   usecase.NewIngestSourceUseCase(sources, storage, queue),
		ProcessUC:  usecase.NewProcessSourceUseCase(sources, recordExtractor, chunker, embedder, store, cfg.IngestBatchSize),
		closeFn: func() {
			queue.Close()
			if redisClient != nil {
				_ = redisClient.Close()
			}
			_ = db.Close()
		},
	}

	slog.Info("bootstrap_ready",
		"llm_provider", cfg.LLMProvider,
		"domain_policy", policy,
		"domain_timeout_ms", cfg.RAGDomainTimeoutMS,
		"answer_generation", generator != nil,
		"embedding_cache", redisClient != nil,
		"collections", domain.Collections(domain.AllDomains()),
	)
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
