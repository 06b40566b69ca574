// Package chat orchestrates one conversational turn end to end.
//
// A turn appends the user's question to the session log, classifies it, and
// resolves it down one of three paths: Non-Serious questions go to the
// Smalltalk persona, Serious questions are verified against the cached
// schema description and either answered by the SQL pipeline or rejected
// with a fixed text. The resulting AI message is appended and the turn ends;
// the Assistant serializes turns so one resolves fully before the next
// starts.
//
// Only the pipeline carries a failure boundary. Classifier, verifier,
// smalltalk and describe errors propagate to the caller, which decides how
// to render them.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/classify"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/observability"
	"github.com/askdw/askdw/internal/schema"
	"github.com/askdw/askdw/internal/session"
)

// historySuffixLen bounds the conversation context injected into pipeline
// prompts. The suffix is read after the question is appended, so it holds
// the previous reply and the current question.
const historySuffixLen = 2

// Sentinel errors for turn handling.
var (
	// ErrNotConnected indicates no warehouse connection has been attached.
	ErrNotConnected = errors.New("not connected to a database")

	// ErrEmptyQuestion indicates blank input; no turn is started.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrInvalidSession indicates the session ID is malformed.
	ErrInvalidSession = errors.New("invalid session")
)

// Config wires the Assistant's always-available collaborators. The
// warehouse-bound ones arrive later via SetConnection once a connect
// attempt succeeds.
type Config struct {
	Store      session.Store
	Classifier *classify.Classifier
	Verifier   *classify.Verifier
	Smalltalk  *Smalltalk
	Logger     log.Logger
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("session store is required")
	}
	if cfg.Classifier == nil {
		return errors.New("classifier is required")
	}
	if cfg.Verifier == nil {
		return errors.New("verifier is required")
	}
	if cfg.Smalltalk == nil {
		return errors.New("smalltalk responder is required")
	}
	return nil
}

// Connection bundles the collaborators that exist only after a successful
// warehouse connect.
type Connection struct {
	Describer *schema.Describer
	Pipeline  *Pipeline
}

// Assistant is the conversation orchestrator.
type Assistant struct {
	mu   sync.Mutex // serializes turns
	conn *Connection

	store      session.Store
	classifier *classify.Classifier
	verifier   *classify.Verifier
	smalltalk  *Smalltalk
	logger     log.Logger
}

// New creates an Assistant from the given configuration. It starts without
// a warehouse connection; Respond returns ErrNotConnected until
// SetConnection is called.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Assistant{
		store:      cfg.Store,
		classifier: cfg.Classifier,
		verifier:   cfg.Verifier,
		smalltalk:  cfg.Smalltalk,
		logger:     cfg.Logger,
	}, nil
}

// SetConnection attaches the warehouse-bound collaborators. Passing nil
// detaches them again.
func (a *Assistant) SetConnection(conn *Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = conn
}

// Connected reports whether a warehouse connection is attached.
func (a *Assistant) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// NewSession creates a session seeded with the greeting, so a fresh log
// always starts with one AI message.
func (a *Assistant) NewSession(ctx context.Context, title string) (*session.Session, error) {
	sess, err := a.store.CreateSession(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	greeting := &session.Message{Role: session.RoleAI, Content: Greeting}
	if err := a.store.AppendMessages(ctx, sess.ID, greeting); err != nil {
		return nil, fmt.Errorf("seed greeting: %w", err)
	}
	return sess, nil
}

// Respond resolves one turn. The question is appended to the log before
// classification; the reply is appended after, so a completed turn always
// adds exactly one Human/AI pair. When a stage outside the pipeline fails,
// the error returns to the caller and the appended question stays in the
// log without a paired reply.
func (a *Assistant) Respond(ctx context.Context, sessionID uuid.UUID, question string) (*Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil, ErrNotConnected
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	human := &session.Message{Role: session.RoleHuman, Content: question}
	if err := a.store.AppendMessages(ctx, sessionID, human); err != nil {
		return nil, fmt.Errorf("append question: %w", err)
	}

	suffix, err := a.store.LastMessages(ctx, sessionID, historySuffixLen)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	reply, err := a.answer(ctx, question, historyText(suffix))
	if err != nil {
		observability.ObserveTurn("error", time.Since(start))
		return nil, err
	}

	ai := &session.Message{Role: session.RoleAI, Content: reply.Text}
	if err := a.store.AppendMessages(ctx, sessionID, ai); err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}

	observability.ObserveTurn(string(reply.Kind), time.Since(start))
	a.logger.Info("turn resolved",
		"session_id", sessionID,
		"kind", reply.Kind,
		"elapsed", time.Since(start),
	)
	return reply, nil
}

// answer runs the decision pipeline for one question.
func (a *Assistant) answer(ctx context.Context, question, suffix string) (*Reply, error) {
	class, err := a.classifier.Classify(ctx, question)
	if err != nil {
		return nil, err
	}

	if class == classify.NonSerious {
		text, err := a.smalltalk.Respond(ctx, question)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: KindSmalltalk, Text: text}, nil
	}

	// Computed once here and passed through both the verifier and the
	// pipeline stages.
	description, err := a.conn.Describer.DescribeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe schema: %w", err)
	}

	verdict, err := a.verifier.Verify(ctx, question, description)
	if err != nil {
		return nil, err
	}
	if verdict == classify.NotRelated {
		return &Reply{Kind: KindRejection, Text: RejectionText}, nil
	}

	return a.conn.Pipeline.Answer(ctx, question, description, suffix), nil
}
