package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/askdw/askdw/db"
	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/classify"
	"github.com/askdw/askdw/internal/config"
	"github.com/askdw/askdw/internal/i18n"
	"github.com/askdw/askdw/internal/llm"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/observability"
	"github.com/askdw/askdw/internal/schema"
	"github.com/askdw/askdw/internal/session"
	"github.com/askdw/askdw/internal/warehouse"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
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

	i18n.Init(cfg.Language)

	// Tracing must be registered before the first genkit.Init so every
	// instance exports through the same provider.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	instances, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = instances[cfg.DistinctAPIKeys()[0]]

	a.clients, err = provideClients(cfg, instances, logger)
	if err != nil {
		return nil, err
	}

	a.Store, a.Pool, err = provideHistoryStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Schema, err = schema.NewStore(cfg.SchemaCachePath)
	if err != nil {
		return nil, fmt.Errorf("opening schema description store: %w", err)
	}

	a.classifier, err = classify.NewClassifier(classify.ClassifierConfig{
		LLM:    a.clients[config.StageClassify],
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}

	a.verifier, err = classify.NewVerifier(classify.VerifierConfig{
		LLM:    a.clients[config.StageVerify],
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating verifier: %w", err)
	}

	a.smalltalk, err = chat.NewSmalltalk(chat.SmalltalkConfig{
		LLM:    a.clients[config.StageSmalltalk],
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating smalltalk responder: %w", err)
	}

	a.Assistant, err = a.NewSessionAssistant()
	if err != nil {
		return nil, fmt.Errorf("creating assistant: %w", err)
	}

	a.Flow = chat.NewFlow(a.Genkit, a.Assistant)

	// Set up lifecycle management
	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// ConnectWarehouse opens the warehouse from the current connection fields
// and attaches the schema describer and SQL pipeline to the assistant. The
// connect form may rewrite the Warehouse* config fields before calling. A
// previous connection is closed after a successful swap.
func (a *App) ConnectWarehouse(ctx context.Context) error {
	cfg := a.Config

	wh, err := warehouse.Connect(ctx, warehouse.Config{
		Driver:       cfg.WarehouseDriver,
		DSN:          cfg.WarehouseDSN(),
		QueryTimeout: cfg.QueryTimeout,
		MaxRows:      cfg.MaxRows,
		Logger:       a.Logger,
	})
	if err != nil {
		return err
	}

	describer, err := schema.NewDescriber(schema.Config{
		Store:  a.Schema,
		Source: wh,
		LLM:    a.clients[config.StageDescribe],
		Logger: a.Logger,
	})
	if err != nil {
		_ = wh.Close()
		return fmt.Errorf("creating describer: %w", err)
	}

	// A turn makes two pipeline model calls; the burst lets the pair
	// through and the interval then spaces pairs one throttle apart.
	limiter := rate.NewLimiter(rate.Every(cfg.ThrottleInterval/2), 2)
	pipeline, err := chat.NewPipeline(chat.PipelineConfig{
		Generate:  a.clients[config.StageGenerate],
		Summarize: a.clients[config.StageSummarize],
		Runner:    wh,
		Limiter:   limiter,
		Logger:    a.Logger,
	})
	if err != nil {
		_ = wh.Close()
		return fmt.Errorf("creating pipeline: %w", err)
	}

	a.conn = &chat.Connection{Describer: describer, Pipeline: pipeline}
	a.Assistant.SetConnection(a.conn)
	if a.Warehouse != nil {
		_ = a.Warehouse.Close()
	}
	a.Warehouse = wh

	a.Logger.Info("warehouse connected",
		"driver", cfg.WarehouseDriver,
		"database", cfg.WarehouseDBName,
	)
	return nil
}

// provideOtelShutdown sets up OTLP tracing before Genkit initialization.
// Returns the cleanup that flushes pending spans at teardown.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Otel.Endpoint,
		Environment: cfg.Otel.Environment,
		ServiceName: cfg.Otel.ServiceName,
		Logger:      logger,
	})
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes one Genkit instance per distinct API key, so
// stages with their own key slot call the API under that key.
func provideGenkit(ctx context.Context, cfg *config.Config) (map[string]*genkit.Genkit, error) {
	keys := cfg.DistinctAPIKeys()
	if len(keys) == 0 {
		return nil, errors.New("no gemini api key configured")
	}

	instances := make(map[string]*genkit.Genkit, len(keys))
	for _, key := range keys {
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: key}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		instances[key] = g
	}
	return instances, nil
}

// provideClients builds one model client per pipeline stage, bound to the
// Genkit instance of the stage's key.
func provideClients(cfg *config.Config, instances map[string]*genkit.Genkit, logger log.Logger) (map[string]*llm.Client, error) {
	clients := make(map[string]*llm.Client, len(config.Stages()))
	for _, stage := range config.Stages() {
		g := instances[cfg.APIKeyFor(stage)]
		if g == nil {
			return nil, fmt.Errorf("no genkit instance for stage %q", stage)
		}
		client, err := llm.New(llm.Config{
			Genkit:      g,
			ModelName:   cfg.FullModelName(),
			Stage:       stage,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.LLMTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s client: %w", stage, err)
		}
		clients[stage] = client
	}
	return clients, nil
}

// provideHistoryStore selects the chat log backend: PostgreSQL when a
// history URL is configured (migrations run first), in-memory otherwise.
func provideHistoryStore(ctx context.Context, cfg *config.Config, logger log.Logger) (session.Store, *pgxpool.Pool, error) {
	if cfg.HistoryURL == "" {
		logger.Debug("chat log kept in memory")
		return session.NewMemoryStore(), nil, nil
	}

	if err := db.Migrate(cfg.HistoryURL); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.HistoryURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing history URL: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging history database: %w", err)
	}

	store, err := session.NewPostgresStore(pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("creating history store: %w", err)
	}
	return store, pool, nil
}
