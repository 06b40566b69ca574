// Package classify gates user questions before they reach the SQL pipeline.
//
// Two single-call stages: a seriousness classifier and a schema relevance
// verifier. Both normalize the model reply to lowercase and compare it
// against a fixed token; any other reply falls through to the safe side
// (Non-Serious, Not-Related). Model failures propagate to the caller, these
// stages carry no retry or failure boundary of their own.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askdw/askdw/internal/log"
)

// Classification labels a question's seriousness.
type Classification string

const (
	Serious    Classification = "serious"
	NonSerious Classification = "non-serious"
)

const classifyPromptTemplate = `Classify the following question as either "Serious" or "Non-Serious."
Serious questions are related to database queries, business matters, or technical inquiries, such as questions about the company's operations, employees, products, sales, or other business processes.
Non-serious questions may be humorous, light-hearted, or irrelevant to these topics.

The user can ask in either Arabic or English. Your response must match the language used by the user.

Question: %s

Respond with either "Serious" or "Non-Serious".`

// Completer is the single model call both stages are built on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClassifierConfig holds Classifier dependencies.
type ClassifierConfig struct {
	LLM    Completer
	Logger log.Logger
}

// Classifier labels questions Serious or Non-Serious.
type Classifier struct {
	llm    Completer
	logger log.Logger
}

// NewClassifier creates a Classifier from the given configuration.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.LLM == nil {
		return nil, errors.New("llm completer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Classifier{llm: cfg.LLM, logger: cfg.Logger}, nil
}

// Classify labels the question. Only an exact (case-insensitive) "Serious"
// reply counts as Serious; everything else is Non-Serious.
func (c *Classifier) Classify(ctx context.Context, question string) (Classification, error) {
	raw, err := c.llm.Complete(ctx, fmt.Sprintf(classifyPromptTemplate, question))
	if err != nil {
		return "", fmt.Errorf("classify question: %w", err)
	}

	result := NonSerious
	if strings.ToLower(strings.TrimSpace(raw)) == string(Serious) {
		result = Serious
	}
	c.logger.Debug("question classified", "classification", result)
	return result, nil
}
