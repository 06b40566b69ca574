package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/session"
)

// maxAskBody bounds the request body (CWE-400).
const maxAskBody = 1 << 20

// titleMaxRunes caps auto-derived session titles.
const titleMaxRunes = 48

// askHandler resolves one chat turn per request.
type askHandler struct {
	assistants *assistantCache
	store      session.Store
	logger     log.Logger
}

// AskRequest is the POST /api/ask payload. An empty SessionID starts a new
// session titled after the question.
type AskRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Question  string `json:"question"`
}

// AskResponse mirrors the resolved turn.
type AskResponse struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Reply     string `json:"reply"`
	SQL       string `json:"sql,omitempty"`
}

func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBody)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question is required", h.logger)
		return
	}

	ctx := r.Context()

	var (
		assistant *chat.Assistant
		sessionID uuid.UUID
	)
	if req.SessionID == "" {
		a, sess, err := h.assistants.create(ctx, sessionTitle(req.Question))
		if err != nil {
			h.logger.Error("creating session", "error", err)
			writeError(w, http.StatusInternalServerError, "session_create_failed", "could not create session", h.logger)
			return
		}
		assistant, sessionID = a, sess.ID
	} else {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session", "sessionId is not a valid UUID", h.logger)
			return
		}
		if _, err := h.store.GetSession(ctx, id); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
				return
			}
			h.logger.Error("loading session", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "session_load_failed", "could not load session", h.logger)
			return
		}
		assistant, err = h.assistants.get(id)
		if err != nil {
			h.logger.Error("building assistant", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "assistant_failed", "could not build assistant", h.logger)
			return
		}
		sessionID = id
	}

	reply, err := assistant.Respond(ctx, sessionID, req.Question)
	if err != nil {
		h.respondError(w, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		SessionID: sessionID.String(),
		Kind:      string(reply.Kind),
		Reply:     reply.Text,
		SQL:       reply.SQL,
	}, h.logger)
}

// respondError maps turn errors to HTTP statuses. Stage failures outside
// the SQL pipeline return a generic 502: the detail is logged, not leaked.
func (h *askHandler) respondError(w http.ResponseWriter, sessionID uuid.UUID, err error) {
	switch {
	case errors.Is(err, chat.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "warehouse_unavailable", "no warehouse connection", h.logger)
	case errors.Is(err, chat.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "empty_question", "question is required", h.logger)
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
	default:
		h.logger.Error("turn failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "the assistant could not process the question", h.logger)
	}
}

// sessionTitle derives a session title from the first question.
func sessionTitle(question string) string {
	title := strings.TrimSpace(question)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes]) + "…"
	}
	return title
}
