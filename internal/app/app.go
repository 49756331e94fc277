// Package app assembles the application: configuration, storage, the
// model provider, the ingestion pipeline, and the HTTP API.
package app

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern/internal/chat"
	"github.com/lantern-ai/lantern/internal/config"
	"github.com/lantern-ai/lantern/internal/ingest"
	"github.com/lantern-ai/lantern/internal/log"
)

// App is the assembled application.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Chat    *chat.Orchestrator
	Ingest  *ingest.Pipeline
	Handler http.Handler

	workers *ingest.Pool
	logger  log.Logger
}

// Close releases resources in reverse dependency order: the worker pool
// first so no job touches a closed database pool.
func (a *App) Close() error {
	a.logger.Info("shutting down")

	var err error
	if a.workers != nil {
		err = a.workers.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return err
}
