package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/session"
)

const (
	assistantCleanupInterval = 5 * time.Minute
	assistantIdleThreshold   = 30 * time.Minute
)

// assistantCache hands out one assistant per session, so a session's turns
// serialize while different sessions resolve concurrently. Idle entries
// are pruned inline on access, the way the rate limiter prunes visitors;
// a pruned session simply gets a fresh assistant on its next turn.
type assistantCache struct {
	mu          sync.Mutex
	factory     func() (*chat.Assistant, error)
	entries     map[uuid.UUID]*assistantEntry
	lastCleanup time.Time
}

type assistantEntry struct {
	assistant *chat.Assistant
	lastSeen  time.Time
}

func newAssistantCache(factory func() (*chat.Assistant, error)) *assistantCache {
	return &assistantCache{
		factory:     factory,
		entries:     make(map[uuid.UUID]*assistantEntry),
		lastCleanup: time.Now(),
	}
}

// get returns the session's assistant, building one on first use.
func (c *assistantCache) get(id uuid.UUID) (*chat.Assistant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.cleanupLocked(now)

	if e, ok := c.entries[id]; ok {
		e.lastSeen = now
		return e.assistant, nil
	}

	assistant, err := c.factory()
	if err != nil {
		return nil, err
	}
	c.entries[id] = &assistantEntry{assistant: assistant, lastSeen: now}
	return assistant, nil
}

// create builds an assistant with a fresh greeting-seeded session and
// registers it under the new session's ID.
func (c *assistantCache) create(ctx context.Context, title string) (*chat.Assistant, *session.Session, error) {
	assistant, err := c.factory()
	if err != nil {
		return nil, nil, err
	}
	sess, err := assistant.NewSession(ctx, title)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.entries[sess.ID] = &assistantEntry{assistant: assistant, lastSeen: time.Now()}
	c.mu.Unlock()
	return assistant, sess, nil
}

// drop removes a session's assistant after the session is deleted.
func (c *assistantCache) drop(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *assistantCache) cleanupLocked(now time.Time) {
	if now.Sub(c.lastCleanup) <= assistantCleanupInterval {
		return
	}
	for k, e := range c.entries {
		if now.Sub(e.lastSeen) > assistantIdleThreshold {
			delete(c.entries, k)
		}
	}
	c.lastCleanup = now
}
