package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/askdw/askdw/internal/log"
)

// Completer is the single model call the chat stages are built on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SmalltalkConfig holds Smalltalk dependencies.
type SmalltalkConfig struct {
	LLM    Completer
	Logger log.Logger
}

// Smalltalk answers Non-Serious questions in a playful financial-assistant
// persona. Stateless; one model call per question, no retry and no failure
// boundary, errors belong to the caller.
type Smalltalk struct {
	llm    Completer
	logger log.Logger
}

// NewSmalltalk creates a Smalltalk responder from the given configuration.
func NewSmalltalk(cfg SmalltalkConfig) (*Smalltalk, error) {
	if cfg.LLM == nil {
		return nil, errors.New("llm completer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Smalltalk{llm: cfg.LLM, logger: cfg.Logger}, nil
}

// Respond generates the playful reply, in the question's language.
func (s *Smalltalk) Respond(ctx context.Context, question string) (string, error) {
	out, err := s.llm.Complete(ctx, fmt.Sprintf(smalltalkPromptTemplate, question))
	if err != nil {
		return "", fmt.Errorf("smalltalk response: %w", err)
	}
	s.logger.Debug("smalltalk responded", "len", len(out))
	return out, nil
}
