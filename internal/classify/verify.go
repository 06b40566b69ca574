package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askdw/askdw/internal/log"
)

// Verdict labels whether a question is answerable from the schema.
type Verdict string

const (
	Related    Verdict = "related"
	NotRelated Verdict = "not-related"
)

const verifyPromptTemplate = `You are a highly intelligent system designed to classify user questions as either **related** or **not related** to a database schema.
The database is a data warehouse that contains information about the company's operations, including data about employees, products, sales, and other related business processes.
The schema follows specific naming conventions where tables may start with prefixes like 'dim' (e.g., dimEmployee, dimDate, dimProduct) for dimension tables and 'fact' (e.g., factResellerSales) for fact tables.

The question must be classified as "Related" only if the data requested can be extracted from the database based on the provided schema.
User questions may be in English or Arabic. Consider both the schema and the database context when making your determination.

<SCHEMA>%s</SCHEMA>

Question: %s

If the question is related to the schema and data can be extracted from the database, respond with "Related".

Otherwise, respond with "Not related".`

// VerifierConfig holds Verifier dependencies.
type VerifierConfig struct {
	LLM    Completer
	Logger log.Logger
}

// Verifier checks whether a Serious question can be answered from the
// described schema.
type Verifier struct {
	llm    Completer
	logger log.Logger
}

// NewVerifier creates a Verifier from the given configuration.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.LLM == nil {
		return nil, errors.New("llm completer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Verifier{llm: cfg.LLM, logger: cfg.Logger}, nil
}

// Verify labels the question against the schema description. Only an exact
// (case-insensitive) "Related" reply counts as Related; everything else is
// Not-Related.
func (v *Verifier) Verify(ctx context.Context, question, description string) (Verdict, error) {
	raw, err := v.llm.Complete(ctx, fmt.Sprintf(verifyPromptTemplate, description, question))
	if err != nil {
		return "", fmt.Errorf("verify schema relevance: %w", err)
	}

	verdict := NotRelated
	if strings.ToLower(strings.TrimSpace(raw)) == string(Related) {
		verdict = Related
	}
	v.logger.Debug("relevance verified", "verdict", verdict)
	return verdict, nil
}
