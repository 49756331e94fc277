package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/lantern-ai/lantern/db"
	"github.com/lantern-ai/lantern/internal/api"
	"github.com/lantern-ai/lantern/internal/chat"
	"github.com/lantern-ai/lantern/internal/chunker"
	"github.com/lantern-ai/lantern/internal/config"
	"github.com/lantern-ai/lantern/internal/ingest"
	"github.com/lantern-ai/lantern/internal/log"
	"github.com/lantern-ai/lantern/internal/provider"
	"github.com/lantern-ai/lantern/internal/retriever"
	"github.com/lantern-ai/lantern/internal/store"
	"github.com/lantern-ai/lantern/internal/tokenizer"
	"github.com/lantern-ai/lantern/internal/tools"
)

const ingestQueueSize = 256

// Setup builds the application from validated configuration. On error,
// everything already initialized is released.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	profile, err := cfg.ActiveProfile()
	if err != nil {
		return nil, err
	}

	pool, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	st := store.New(pool, logger)

	codec, err := tokenizer.New(profile.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %q: %w", profile.Tokenizer, err)
	}
	splitter, err := chunker.New(codec, profile.ChunkSize, profile.OverlapSize)
	if err != nil {
		return nil, fmt.Errorf("building chunker: %w", err)
	}

	client := provider.NewClient(cfg, profile, logger)

	a.workers = ingest.NewPool(cfg.WorkerCount, ingestQueueSize, logger)
	a.Ingest = ingest.New(st, client, splitter, profile.EmbeddingColumn, a.workers, logger)

	ret := retriever.New(st, profile, cfg.RetrievalLimit, cfg.DistanceThreshold, logger)

	registry := tools.NewRegistry(logger,
		tools.NewLookupContact(st),
		tools.NewCountContacts(st),
	)

	a.Chat = chat.New(client, st, ret, registry, cfg.HistoryWindow, logger)

	server := api.NewServer(api.ServerConfig{
		Logger:        logger,
		Chat:          a.Chat,
		Documents:     st,
		Conversations: st,
		Ingestor:      a.Ingest,
		Pinger:        pool,
	})
	a.Handler = server.Handler()

	logger.Info("application ready",
		"profile", profile.Name,
		"embedding_column", profile.EmbeddingColumn,
		"workers", cfg.WorkerCount,
	)
	return a, nil
}

// providePool migrates the schema, then opens a pgx pool with pgvector
// types registered on every connection.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
