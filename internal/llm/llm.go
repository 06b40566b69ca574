// Package llm wraps the single prompt-in, completion-out call every pipeline
// stage is built from.
//
// Each stage owns a Client bound to its Genkit instance (one per distinct API
// key) and the configured model. Transport, auth and quota failures are
// indistinguishable to callers: everything wraps ErrCall.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/observability"
)

// ErrCall indicates the model call failed (auth, quota, or network).
var ErrCall = errors.New("llm call failed")

// DefaultTimeout bounds a single model call when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Config holds Client dependencies.
type Config struct {
	// Genkit is the initialized Genkit instance (required).
	Genkit *genkit.Genkit

	// ModelName is the provider-qualified model, e.g. "googleai/gemini-2.5-flash" (required).
	ModelName string

	// Stage labels this client's calls in logs and metrics, e.g. "classify".
	// Defaults to "default".
	Stage string

	// Temperature for generation. Zero means provider default.
	Temperature float32

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for call diagnostics. Defaults to a no-op logger.
	Logger log.Logger
}

func (c *Config) validate() error {
	if c.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if c.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Client performs one-shot completions.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	stage       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      log.Logger
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}
	if cfg.Stage == "" {
		cfg.Stage = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Client{
		g:           cfg.Genkit,
		modelName:   cfg.ModelName,
		stage:       cfg.Stage,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}, nil
}

// ModelName returns the provider-qualified model this client calls.
func (c *Client) ModelName() string {
	return c.modelName
}

// Complete sends one prompt and returns the trimmed completion text.
// The call is bounded by the configured timeout regardless of the caller's
// context deadline.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := genkit.Generate(callCtx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(c.generateConfig()),
	)
	observability.ObserveLLMCall(c.stage, err, time.Since(start))
	if err != nil {
		c.logger.Debug("llm call failed", "stage", c.stage, "model", c.modelName, "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("%w: %v", ErrCall, err)
	}

	text := strings.TrimSpace(resp.Text())
	c.logger.Debug("llm call completed", "stage", c.stage, "model", c.modelName, "duration", time.Since(start), "response_bytes", len(text))
	return text, nil
}

func (c *Client) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if c.temperature > 0 {
		cfg.Temperature = genai.Ptr(c.temperature)
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxTokens)
	}
	return cfg
}

// StripCodeFences removes ``` ... ``` wrapping from model output. Stages that
// must receive raw text (generated SQL in particular) run replies through this
// even though the prompts forbid fences.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (with optional language tag).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
