package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"github.com/askdw/askdw/internal/warehouse"
)

// stubCompleter returns a fixed response or error and records prompts.
type stubCompleter struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubCompleter) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// flakyCompleter fails the first n calls with err, then succeeds with out.
type flakyCompleter struct {
	mu       sync.Mutex
	failures int
	err      error
	out      string
	attempts int
}

func (f *flakyCompleter) Complete(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return "", f.err
	}
	return f.out, nil
}

func (f *flakyCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// fakeRunner records executed statements and returns a canned result.
type fakeRunner struct {
	mu     sync.Mutex
	result *warehouse.Result
	err    error
	stmts  []string
}

func (r *fakeRunner) Run(_ context.Context, sqlText string) (*warehouse.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, sqlText)
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &warehouse.Result{Columns: []string{"count"}, Rows: [][]any{{int64(42)}}}, nil
}

func (r *fakeRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stmts)
}

func (r *fakeRunner) lastStmt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stmts) == 0 {
		return ""
	}
	return r.stmts[len(r.stmts)-1]
}

// newTestPipeline builds a pipeline with no throttling and fast retries so
// tests never sleep on real backoff intervals.
func newTestPipeline(t *testing.T, cfg PipelineConfig) *Pipeline {
	t.Helper()
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = RetryConfig{MaxRetries: 2, InitialInterval: 1, MaxInterval: 2}
	}
	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

// containsAll fails the test unless s contains every want substring.
func containsAll(t *testing.T, s string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in:\n%s", want, s)
		}
	}
}
