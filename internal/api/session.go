package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/session"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 200
)

// sessionHandler exposes the conversation log.
type sessionHandler struct {
	assistants *assistantCache
	store      session.Store
	logger     log.Logger
}

// SessionPayload is the wire form of a session.
type SessionPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessagePayload is the wire form of one transcript entry.
type MessagePayload struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateSessionRequest optionally names the new session.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

func sessionPayload(s *session.Session) SessionPayload {
	return SessionPayload{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// create starts a session eagerly so the greeting is already in the
// transcript when the client first lists messages.
func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	// An empty body means default title; a malformed one is an error.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New conversation"
	}

	_, sess, err := h.assistants.create(r.Context(), title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "session_create_failed", "could not create session", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(sess), h.logger)
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultSessionLimit)
	if limit < 1 || limit > maxSessionLimit {
		limit = defaultSessionLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "session_list_failed", "could not list sessions", h.logger)
		return
	}

	payload := make([]SessionPayload, 0, len(sessions))
	for _, s := range sessions {
		payload = append(payload, sessionPayload(s))
	}
	writeJSON(w, http.StatusOK, payload, h.logger)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		h.sessionError(w, id, err, "loading session")
		return
	}

	msgs, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.logger.Error("loading messages", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "message_list_failed", "could not load messages", h.logger)
		return
	}

	payload := make([]MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		payload = append(payload, MessagePayload{
			Role:      string(m.Role),
			Content:   m.Content,
			Seq:       m.Seq,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, payload, h.logger)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		h.sessionError(w, id, err, "deleting session")
		return
	}
	h.assistants.drop(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) pathSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session id is not a valid UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *sessionHandler) sessionError(w http.ResponseWriter, id uuid.UUID, err error, action string) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
		return
	}
	h.logger.Error(action, "session_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "session_store_failed", "session store error", h.logger)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
