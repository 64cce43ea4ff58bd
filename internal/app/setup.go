package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quillon/quill/db"
	"github.com/quillon/quill/internal/api"
	"github.com/quillon/quill/internal/config"
	"github.com/quillon/quill/internal/credential"
	"github.com/quillon/quill/internal/keystore"
	"github.com/quillon/quill/internal/modelreg"
	"github.com/quillon/quill/internal/provider"
	"github.com/quillon/quill/internal/retrieval"
)

// defaultSystemPrompt is the base prompt before retrieval augmentation.
const defaultSystemPrompt = "You are a helpful assistant. Answer using the conversation and, " +
	"when present, the retrieved context. Cite sources when you use them."

// usageTTL bounds how long per-day usage counters live in Redis.
const usageTTL = 48 * time.Hour

// Setup creates and initializes the application.
// Returns an App with held resources; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Registry = modelreg.Default()

	a.Orchestrator = provideOrchestrator(g, pool, embedder, a.Registry, cfg, logger)

	resolver, err := provideResolver(pool, a.Registry, cfg, logger, a)
	if err != nil {
		return nil, err
	}
	a.Resolver = resolver

	generator := provider.NewGenkitGenerator(g, logger)
	server, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Registry:     a.Registry,
		Resolver:     a.Resolver,
		Orchestrator: a.Orchestrator,
		Generator:    generator,
		Pool:         pool,
		BasePrompt:   defaultSystemPrompt,
		RatePerSec:   cfg.RatePerSec,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return nil, err
	}
	a.Handler = server.Handler()

	return a, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Google plugin, adding the
// OpenAI plugin when its API key is present. Per-request keys resolved by
// the credential chain still override plugin defaults at call time.
func provideGenkit(ctx context.Context, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit
	if os.Getenv("OPENAI_API_KEY") != "" {
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}, &openai.OpenAI{}))
	} else {
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	}
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	logger.Info("initialized genkit")
	return g, nil
}

// provideOrchestrator wires the retrieval pipeline: pgvector search, the
// optional two-pass rewriter, and the streaming generator.
func provideOrchestrator(g *genkit.Genkit, pool *pgxpool.Pool, embedder ai.Embedder, registry *modelreg.Registry, cfg *config.Config, logger *slog.Logger) *retrieval.Orchestrator {
	searcher := provider.NewPgvectorSearcher(pool, embedder, logger)
	vector := retrieval.NewVectorRetriever(searcher)

	var twoPass *retrieval.TwoPassRetriever
	if cfg.TwoPassEnabled {
		rewriteModel := cfg.RewriteModelName
		if entry, ok := registry.Lookup(rewriteModel); ok {
			rewriteModel = provider.QualifiedModelName(entry)
		}
		rewriter := provider.NewGenkitRewriter(g, rewriteModel)
		twoPass = retrieval.NewTwoPassRetriever(rewriter, vector)
	}

	generator := provider.NewGenkitGenerator(g, logger)
	return retrieval.NewOrchestrator(twoPass, vector, generator, retrieval.Config{
		TwoPassEnabled: cfg.TwoPassEnabled,
		TopK:           cfg.TopK,
		BudgetTokens:   cfg.BudgetTokens,
	}, logger)
}

// provideResolver wires the credential precedence chain. The BYOK tier is
// only enabled when a data key is configured; usage recording only when
// Redis is configured.
func provideResolver(pool *pgxpool.Pool, registry *modelreg.Registry, cfg *config.Config, logger *slog.Logger, a *App) (*credential.Resolver, error) {
	var keys credential.KeyStore
	if cfg.KeyDataSecret != "" {
		dataKey, err := hex.DecodeString(cfg.KeyDataSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: not hex encoded", config.ErrInvalidKeyDataSecret)
		}
		store, err := keystore.New(pool, dataKey, logger)
		if err != nil {
			return nil, fmt.Errorf("creating keystore: %w", err)
		}
		keys = store
	} else {
		logger.Info("key data secret not configured, BYOK tier disabled")
	}

	var usage credential.UsageRecorder
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.redisClient = client
		usage = credential.NewRedisUsage(client, usageTTL)
	} else {
		logger.Info("redis not configured, usage recording disabled")
	}

	return credential.NewResolver(credential.ResolverConfig{
		GatewayEnabled: cfg.GatewayEnabled,
		Keys:           keys,
		Usage:          usage,
		ProviderFor:    registry.ProviderFor,
		Logger:         logger,
	}), nil
}
