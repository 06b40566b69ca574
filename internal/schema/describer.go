package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/askdw/askdw/internal/log"
)

const describePromptTemplate = `You are given a database schema. For each table, provide only the following:
- A list of columns with their data types.
- Primary and foreign key constraints, if any.
- One example row of data.
Keep the description as brief as possible while including all critical details.

Schema:
%s

Description:`

// Completer is the single model call the describer needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SchemaSource supplies the raw schema dump to condense.
type SchemaSource interface {
	SchemaText(ctx context.Context) (string, error)
}

// Config holds Describer dependencies.
type Config struct {
	Store  *Store
	Source SchemaSource
	LLM    Completer
	Logger log.Logger
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Source == nil {
		return errors.New("schema source is required")
	}
	if c.LLM == nil {
		return errors.New("llm completer is required")
	}
	return nil
}

// Describer produces the condensed schema description and keeps it cached.
type Describer struct {
	store  *Store
	source SchemaSource
	llm    Completer
	logger log.Logger

	// mu serializes describe calls so concurrent first uses cannot both
	// generate and append.
	mu sync.Mutex
}

// NewDescriber creates a Describer from the given configuration.
func NewDescriber(cfg Config) (*Describer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid describer config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Describer{
		store:  cfg.Store,
		source: cfg.Source,
		llm:    cfg.LLM,
		logger: cfg.Logger,
	}, nil
}

// DescribeAll returns the canonical schema description, generating and
// persisting it on first use. Once any content exists in the store it is
// returned verbatim and never regenerated. Warehouse and model failures
// propagate to the caller unretried; nothing is written on failure.
func (d *Describer) DescribeAll(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.describeLocked(ctx)
}

// Refresh discards the cached description and generates a fresh one.
func (d *Describer) Refresh(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Clear(); err != nil {
		return "", err
	}
	return d.describeLocked(ctx)
}

func (d *Describer) describeLocked(ctx context.Context) (string, error) {
	exists, err := d.store.Exists()
	if err != nil {
		return "", err
	}
	if exists {
		return d.store.Read()
	}

	raw, err := d.source.SchemaText(ctx)
	if err != nil {
		return "", err
	}

	d.logger.Info("generating schema description")
	description, err := d.llm.Complete(ctx, fmt.Sprintf(describePromptTemplate, raw))
	if err != nil {
		return "", err
	}

	if err := d.store.Append(description); err != nil {
		return "", err
	}
	d.logger.Info("schema description cached", "path", d.store.Path(), "bytes", len(description))

	// Return the stored bytes so every successful call, first included,
	// yields identical output.
	return d.store.Read()
}
