package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. It backs the terminal UI
// when no history database is configured; everything is lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	logs     map[uuid.UUID][]*Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*Session),
		logs:     make(map[uuid.UUID][]*Message),
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context, title string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	s.logs[sess.ID] = nil

	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	delete(s.logs, id)
	return nil
}

func (s *MemoryStore) AppendMessages(ctx context.Context, sessionID uuid.UUID, msgs ...*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	log := s.logs[sessionID]
	seq := 0
	if len(log) > 0 {
		seq = log[len(log)-1].Seq
	}

	now := time.Now()
	for _, msg := range msgs {
		seq++
		log = append(log, &Message{
			ID:        uuid.New(),
			SessionID: sessionID,
			Role:      msg.Role,
			Content:   msg.Content,
			Seq:       seq,
			CreatedAt: now,
		})
	}
	s.logs[sessionID] = log
	sess.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Messages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	log := s.logs[sessionID]
	if len(log) > maxLogRead {
		log = log[:maxLogRead]
	}
	out := make([]*Message, len(log))
	for i, msg := range log {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) LastMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if n <= 0 {
		return nil, nil
	}
	log := s.logs[sessionID]
	if n < len(log) {
		log = log[len(log)-n:]
	}
	out := make([]*Message, len(log))
	for i, msg := range log {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}
