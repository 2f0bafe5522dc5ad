// Package app wires the application together: database, Genkit
// provider, index, tools, agent, sessions, and the chat service.
package app

import (
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern/lectern/internal/agent"
	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/ingest"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// App holds every constructed component and their cleanup hooks.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Index    *index.Index
	Registry *tools.Registry
	ToolRefs []ai.ToolRef
	Agent    *agent.Agent
	Sessions *session.Store
	Chat     *chat.Service
	Ingestor *ingest.Ingestor

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse construction order. Safe to call
// on a partially constructed App.
func (a *App) Close() error {
	var errs []error

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}

	return errors.Join(errs...)
}
