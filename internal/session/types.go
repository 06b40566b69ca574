// Package session persists conversation history: sessions and their ordered,
// append-only message logs.
//
// Two Store implementations exist. PostgresStore backs the API server and
// multi-session deployments; MemoryStore backs the terminal UI when no
// history DSN is configured. Both assign strictly increasing sequence
// numbers, so a log read is always in chronological order.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role of a chat log entry.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Message is one immutable entry in a session's ordered log.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      Role
	Content   string
	Seq       int
	CreatedAt time.Time
}

// Session groups an ordered message log.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
