package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSessionNotFound indicates the requested session does not exist.
// Check with errors.Is.
var ErrSessionNotFound = errors.New("session not found")

// maxLogRead bounds a full log read.
const maxLogRead = 1000

// Store persists sessions and their message logs.
type Store interface {
	// CreateSession creates an empty session.
	CreateSession(ctx context.Context, title string) (*Session, error)

	// GetSession returns a session by ID, or ErrSessionNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)

	// ListSessions returns sessions ordered by most recent activity.
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// AppendMessages appends messages to the session log in order,
	// assigning the next sequence numbers. Only Role and Content are read
	// from the input; identity and ordering fields are assigned here.
	AppendMessages(ctx context.Context, sessionID uuid.UUID, msgs ...*Message) error

	// Messages returns the session's full log in chronological order.
	Messages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error)

	// LastMessages returns the trailing n log entries in chronological
	// order.
	LastMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]*Message, error)
}
