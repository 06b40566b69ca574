package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdw/askdw/internal/log"
)

// PostgresStore persists sessions in PostgreSQL. Safe for concurrent use;
// appends lock the session row so sequence numbers never collide.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgresStore creates a store on the given pool. The pool must point at
// a database with the history migrations applied.
func NewPostgresStore(pool *pgxpool.Pool, logger log.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, title string) (*Session, error) {
	sess := &Session{ID: uuid.New(), Title: title}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, title) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		sess.ID, title,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Debug("session created", "session_id", sess.ID)
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := &Session{ID: id}

	err := s.pool.QueryRow(ctx,
		`SELECT title, created_at, updated_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at
		 FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.logger.Debug("session deleted", "session_id", id)
	return nil
}

// AppendMessages inserts messages inside one transaction. The session row is
// locked first (SELECT ... FOR UPDATE) so concurrent appends to the same
// session serialize instead of racing on sequence numbers.
func (s *PostgresStore) AppendMessages(ctx context.Context, sessionID uuid.UUID, msgs ...*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("lock session: %w", err)
	}

	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = $1`,
		sessionID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("max sequence: %w", err)
	}

	for i, msg := range msgs {
		_, err = tx.Exec(ctx,
			`INSERT INTO messages (id, session_id, role, content, seq)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), sessionID, string(msg.Role), msg.Content, maxSeq+i+1)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("messages appended", "session_id", sessionID, "count", len(msgs))
	return nil
}

func (s *PostgresStore) Messages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, session_id, role, content, seq, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY seq ASC
		 LIMIT $2`,
		sessionID, maxLogRead)
}

func (s *PostgresStore) LastMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]*Message, error) {
	if n <= 0 {
		return nil, nil
	}
	msgs, err := s.queryMessages(ctx,
		`SELECT id, session_id, role, content, seq, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY seq DESC
		 LIMIT $2`,
		sessionID, n)
	if err != nil {
		return nil, err
	}

	// Reverse back into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg := &Message{}
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &msg.Seq, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}
