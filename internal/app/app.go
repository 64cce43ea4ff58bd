// Package app assembles the application: database pool, Genkit, retrieval
// pipeline, credential resolution, and the HTTP server. Setup wires
// everything once at startup; Close releases resources in reverse order.
package app

import (
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quillon/quill/internal/config"
	"github.com/quillon/quill/internal/credential"
	"github.com/quillon/quill/internal/modelreg"
	"github.com/quillon/quill/internal/retrieval"
)

// App holds the wired application components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Registry *modelreg.Registry
	Resolver *credential.Resolver

	Orchestrator *retrieval.Orchestrator
	Handler      http.Handler

	redisClient *redis.Client
}

// Close releases held resources. Safe to call after a partial Setup.
func (a *App) Close() error {
	var firstErr error

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return firstErr
}
