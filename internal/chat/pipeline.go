package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/askdw/askdw/internal/llm"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/warehouse"
)

// Default quota throttle: ten model calls per minute sustained, with burst
// covering one turn's two calls. Sized for the Gemini free tier.
const (
	defaultQuotaInterval = 6 * time.Second
	defaultQuotaBurst    = 2
)

// Kind labels how a Reply was produced.
type Kind string

const (
	KindAnswer    Kind = "answer"
	KindRejection Kind = "rejection"
	KindSmalltalk Kind = "smalltalk"
	KindFailure   Kind = "failure"
)

// Reply is one resolved AI turn. Text is what the user sees; SQL and Err
// carry operator detail (the generated statement and, for failures, the
// cause) that never renders in the transcript.
type Reply struct {
	Kind Kind
	Text string
	SQL  string
	Err  error
}

// QueryRunner executes SQL against the connected warehouse.
type QueryRunner interface {
	Run(ctx context.Context, sqlText string) (*warehouse.Result, error)
}

// PipelineConfig wires the SQL answering pipeline.
type PipelineConfig struct {
	Generate  Completer   // SQL generation model
	Summarize Completer   // result summarization model
	Runner    QueryRunner // connected warehouse
	Logger    log.Logger

	Limiter *rate.Limiter        // API quota throttle; nil uses the default
	Retry   RetryConfig          // zero value uses defaults
	Breaker CircuitBreakerConfig // zero value uses defaults
}

// validate checks if all required parameters are present.
func (cfg PipelineConfig) validate() error {
	if cfg.Generate == nil {
		return errors.New("generate completer is required")
	}
	if cfg.Summarize == nil {
		return errors.New("summarize completer is required")
	}
	if cfg.Runner == nil {
		return errors.New("query runner is required")
	}
	return nil
}

// Pipeline turns a Related question into a natural-language answer in three
// stages: generate SQL, execute it, summarize the result. It is the single
// failure boundary of a turn. Any stage error, model, query, rate limit or
// breaker, becomes a KindFailure Reply with the fixed retry-later text;
// Answer never returns an error.
//
// Model calls run through the shared rate limiter, bounded retry, and a
// circuit breaker. The schema description is computed once per turn by the
// orchestrator and passed through, never re-fetched between stages.
type Pipeline struct {
	generateLLM  Completer
	summarizeLLM Completer
	runner       QueryRunner
	logger       log.Logger

	limiter *rate.Limiter
	retry   RetryConfig
	breaker *CircuitBreaker
}

// NewPipeline creates a Pipeline from the given configuration.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(defaultQuotaInterval), defaultQuotaBurst)
	}

	return &Pipeline{
		generateLLM:  cfg.Generate,
		summarizeLLM: cfg.Summarize,
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		limiter:      limiter,
		retry:        retry,
		breaker:      NewCircuitBreaker(cfg.Breaker),
	}, nil
}

// Answer resolves a Related question. The description is the cached schema
// description for this turn; historySuffix is the rendered trailing
// conversation context, which already ends with the current question.
func (p *Pipeline) Answer(ctx context.Context, question, description, historySuffix string) *Reply {
	start := time.Now()

	sqlText, err := p.generate(ctx, description, historySuffix)
	if err != nil {
		return p.failure("generate sql", err, "")
	}

	result, err := p.runner.Run(ctx, sqlText)
	if err != nil {
		return p.failure("execute sql", err, sqlText)
	}

	answer, err := p.summarize(ctx, description, historySuffix, sqlText, question, result.Text())
	if err != nil {
		return p.failure("summarize result", err, sqlText)
	}

	p.logger.Debug("pipeline answered",
		"rows", len(result.Rows),
		"truncated", result.Truncated,
		"query_elapsed", result.Duration,
		"elapsed", time.Since(start),
	)
	return &Reply{Kind: KindAnswer, Text: answer, SQL: sqlText}
}

// generate produces the raw SQL statement. The prompt forbids markup, but
// fences are stripped anyway since models add them regardless.
func (p *Pipeline) generate(ctx context.Context, description, historySuffix string) (string, error) {
	prompt := fmt.Sprintf(generatePromptTemplate, description, historySuffix)
	raw, err := p.completeResilient(ctx, p.generateLLM, prompt)
	if err != nil {
		return "", err
	}
	return llm.StripCodeFences(raw), nil
}

func (p *Pipeline) summarize(ctx context.Context, description, historySuffix, sqlText, question, resultText string) (string, error) {
	prompt := fmt.Sprintf(summarizePromptTemplate, description, historySuffix, sqlText, question, resultText)
	return p.completeResilient(ctx, p.summarizeLLM, prompt)
}

// completeResilient runs one model call through the circuit breaker and the
// retry loop.
func (p *Pipeline) completeResilient(ctx context.Context, model Completer, prompt string) (string, error) {
	if err := p.breaker.Allow(); err != nil {
		p.logger.Warn("rejecting model call", "state", p.breaker.State().String())
		return "", fmt.Errorf("service unavailable: %w", err)
	}

	out, err := p.completeWithRetry(ctx, model, prompt)
	if err != nil {
		p.breaker.Failure()
		return "", err
	}

	p.breaker.Success()
	return out, nil
}

func (p *Pipeline) failure(stage string, err error, sqlText string) *Reply {
	p.logger.Error("pipeline stage failed", "stage", stage, "error", err)
	return &Reply{
		Kind: KindFailure,
		Text: FailureText,
		SQL:  sqlText,
		Err:  fmt.Errorf("%s: %w", stage, err),
	}
}
