// Package warehouse is the gateway to the analytical database the assistant
// answers questions about: connection management, schema introspection, and
// generated-query execution.
//
// The warehouse is read-mostly and session-scoped. One Warehouse is shared by
// every pipeline stage of a session; database/sql makes the underlying pool
// safe for the concurrent sessions the API server creates.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver

	"github.com/askdw/askdw/internal/log"
)

// Driver names accepted by Connect.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	// ErrConnection indicates the warehouse is unreachable or refused the
	// credentials. Surfaced to the user at connect time; the session keeps
	// running without a warehouse handle.
	ErrConnection = errors.New("warehouse connection failed")

	// ErrQuery indicates a statement failed to execute (malformed SQL or a
	// runtime database error).
	ErrQuery = errors.New("warehouse query failed")
)

// Defaults applied when Config leaves the knobs unset.
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 500

	connectTimeout = 10 * time.Second
)

// Config holds Warehouse dependencies.
type Config struct {
	// Driver selects the dialect: DriverPostgres or DriverSQLite (required).
	Driver string

	// DSN is the driver-specific connection string (required).
	DSN string

	// QueryTimeout bounds each statement. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration

	// MaxRows caps how many rows a result captures. Defaults to DefaultMaxRows.
	MaxRows int

	// Logger for query diagnostics. Defaults to a no-op logger.
	Logger log.Logger
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	return nil
}

// Warehouse is a live connection to the analytical database.
type Warehouse struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
	maxRows      int
	logger       log.Logger
}

// Connect opens the warehouse and verifies it answers a ping.
// Unreachable hosts and bad credentials fail with ErrConnection.
func Connect(ctx context.Context, cfg Config) (*Warehouse, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid warehouse config: %w", err)
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	// database/sql driver names differ from the config vocabulary for
	// postgres: the pgx stdlib adapter registers as "pgx".
	driverName := cfg.Driver
	if cfg.Driver == DriverPostgres {
		driverName = "pgx"
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	cfg.Logger.Info("warehouse connected", "driver", cfg.Driver)
	return &Warehouse{
		db:           db,
		driver:       cfg.Driver,
		queryTimeout: cfg.QueryTimeout,
		maxRows:      cfg.MaxRows,
		logger:       cfg.Logger,
	}, nil
}

// Driver returns the configured driver name.
func (w *Warehouse) Driver() string {
	return w.driver
}

// Close releases the connection pool.
func (w *Warehouse) Close() error {
	return w.db.Close()
}
