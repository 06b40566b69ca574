// Package app assembles configuration into a running assistant.
//
// Setup builds everything that works without a warehouse: the Genkit
// instances (one per distinct API key), the per-stage model clients, the
// chat log store and the assistant itself. ConnectWarehouse attaches the
// database-dependent half, the schema describer and the SQL pipeline, once
// connection fields are known; until then every turn fails with
// chat.ErrNotConnected.
package app

import (
	"context"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/classify"
	"github.com/askdw/askdw/internal/config"
	"github.com/askdw/askdw/internal/llm"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/schema"
	"github.com/askdw/askdw/internal/session"
	"github.com/askdw/askdw/internal/warehouse"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Genkit is the primary instance; the ask flow is registered on it.
	Genkit    *genkit.Genkit
	Assistant *chat.Assistant
	Flow      *chat.Flow
	Store     session.Store
	Schema    *schema.Store

	// Warehouse is nil until ConnectWarehouse succeeds.
	Warehouse *warehouse.Warehouse
	// Pool is nil when the chat log is kept in memory.
	Pool *pgxpool.Pool

	clients     map[string]*llm.Client // keyed by pipeline stage
	classifier  *classify.Classifier
	verifier    *classify.Verifier
	smalltalk   *chat.Smalltalk
	conn        *chat.Connection
	otelCleanup func()
	cancel      context.CancelFunc
}

// Client returns the model client for a pipeline stage, nil if unknown.
func (a *App) Client(stage string) *llm.Client {
	return a.clients[stage]
}

// Describer returns the schema describer, nil before ConnectWarehouse.
func (a *App) Describer() *schema.Describer {
	if a.conn == nil {
		return nil
	}
	return a.conn.Describer
}

// NewSessionAssistant builds an assistant for one API session. Instances
// share the chat log store, the stage clients and the warehouse connection
// (pipeline throttle included), so concurrent sessions stay within the API
// quota while serializing only their own turns. Connect the warehouse
// before serving; assistants built earlier never see the connection.
func (a *App) NewSessionAssistant() (*chat.Assistant, error) {
	assistant, err := chat.New(chat.Config{
		Store:      a.Store,
		Classifier: a.classifier,
		Verifier:   a.verifier,
		Smalltalk:  a.smalltalk,
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, err
	}
	if a.conn != nil {
		assistant.SetConnection(a.conn)
	}
	return assistant, nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger.Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.Warehouse != nil {
		if err := a.Warehouse.Close(); err != nil {
			logger.Warn("closing warehouse", "error", err)
		}
		a.Warehouse = nil
	}

	if a.Pool != nil {
		a.Pool.Close()
		logger.Debug("history pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
