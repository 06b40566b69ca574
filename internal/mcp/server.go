package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/session"
)

const titleMaxRunes = 48

// Config holds MCP server dependencies.
type Config struct {
	Name      string
	Version   string
	Assistant *chat.Assistant
	Logger    log.Logger
}

// Server wraps the SDK server around the warehouse assistant.
type Server struct {
	mcpServer *mcp.Server
	assistant *chat.Assistant
	logger    log.Logger
}

// NewServer creates an MCP server with the ask_warehouse tool registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Assistant == nil {
		return nil, fmt.Errorf("assistant is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		assistant: cfg.Assistant,
		logger:    logger,
	}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves the MCP protocol on the given transport. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// AskWarehouseInput is the ask_warehouse tool input.
type AskWarehouseInput struct {
	Question  string `json:"question" jsonschema:"the natural-language question to answer from the warehouse"`
	SessionID string `json:"sessionId,omitempty" jsonschema:"optional session id from an earlier call, to continue that conversation"`
}

// AskWarehouseOutput is the ask_warehouse tool result, returned as JSON text.
type AskWarehouseOutput struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Reply     string `json:"reply"`
	SQL       string `json:"sql,omitempty"`
}

func (s *Server) registerTools() error {
	askSchema, err := jsonschema.For[AskWarehouseInput](nil)
	if err != nil {
		return fmt.Errorf("schema for ask_warehouse: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ask_warehouse",
		Description: "Answer a natural-language question from the connected data warehouse. Returns JSON with the session id, the reply kind, the reply text and, for answers, the executed SQL. Pass the returned sessionId back to continue the conversation.",
		InputSchema: askSchema,
	}, s.handleAsk)
	return nil
}

// handleAsk resolves one tool call. Client mistakes and turn failures come
// back as IsError results so the calling model can react; only bugs
// propagate as protocol errors.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in AskWarehouseInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Question) == "" {
		return errorResult("question is required"), nil, nil
	}

	var sessionID uuid.UUID
	if in.SessionID == "" {
		sess, err := s.assistant.NewSession(ctx, sessionTitle(in.Question))
		if err != nil {
			s.logger.Error("creating session", "error", err)
			return errorResult("could not start a session"), nil, nil
		}
		sessionID = sess.ID
	} else {
		id, err := uuid.Parse(in.SessionID)
		if err != nil {
			return errorResult("sessionId is not a valid UUID"), nil, nil
		}
		sessionID = id
	}

	reply, err := s.assistant.Respond(ctx, sessionID, in.Question)
	switch {
	case errors.Is(err, chat.ErrNotConnected):
		return errorResult("no warehouse connection; configure the warehouse and restart the server"), nil, nil
	case errors.Is(err, session.ErrSessionNotFound):
		return errorResult("session does not exist; omit sessionId to start a new one"), nil, nil
	case err != nil:
		s.logger.Error("turn failed", "session_id", sessionID, "error", err)
		return errorResult("the assistant could not process the question; try again later"), nil, nil
	}

	return jsonResult(AskWarehouseOutput{
		SessionID: sessionID.String(),
		Kind:      string(reply.Kind),
		Reply:     reply.Text,
		SQL:       reply.SQL,
	}), nil, nil
}

// errorResult builds an IsError tool result with a client-safe message.
func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// jsonResult marshals v into a single text content block.
func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult("encoding result failed")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

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
