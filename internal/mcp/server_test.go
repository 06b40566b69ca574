package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/classify"
	"github.com/askdw/askdw/internal/schema"
	"github.com/askdw/askdw/internal/session"
	"github.com/askdw/askdw/internal/warehouse"
)

// completerFunc adapts a func to the Completer interfaces of the classify,
// chat and schema packages.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func fixedCompleter(out string) completerFunc {
	return func(context.Context, string) (string, error) { return out, nil }
}

type staticSource struct{ text string }

func (s staticSource) SchemaText(context.Context) (string, error) {
	return s.text, nil
}

type fakeRunner struct{}

func (fakeRunner) Run(context.Context, string) (*warehouse.Result, error) {
	return &warehouse.Result{Columns: []string{"count"}, Rows: [][]any{{int64(7)}}}, nil
}

// newTestAssistant builds an assistant over scripted models. With
// connected false it never gets a warehouse connection.
func newTestAssistant(t *testing.T, connected bool) (*chat.Assistant, session.Store) {
	t.Helper()

	store := session.NewMemoryStore()
	classifier, err := classify.NewClassifier(classify.ClassifierConfig{LLM: fixedCompleter("Serious")})
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}
	verifier, err := classify.NewVerifier(classify.VerifierConfig{LLM: fixedCompleter("Related")})
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}
	smalltalk, err := chat.NewSmalltalk(chat.SmalltalkConfig{LLM: fixedCompleter("Hi!")})
	if err != nil {
		t.Fatalf("NewSmalltalk() error: %v", err)
	}
	assistant, err := chat.New(chat.Config{
		Store:      store,
		Classifier: classifier,
		Verifier:   verifier,
		Smalltalk:  smalltalk,
	})
	if err != nil {
		t.Fatalf("chat.New() error: %v", err)
	}

	if connected {
		schemaStore, err := schema.NewStore(filepath.Join(t.TempDir(), "schema_descriptions.txt"))
		if err != nil {
			t.Fatalf("schema.NewStore() error: %v", err)
		}
		describer, err := schema.NewDescriber(schema.Config{
			Store:  schemaStore,
			Source: staticSource{text: "fact_sales(order_key, amount)"},
			LLM:    fixedCompleter("fact_sales: one row per order line."),
		})
		if err != nil {
			t.Fatalf("NewDescriber() error: %v", err)
		}
		pipeline, err := chat.NewPipeline(chat.PipelineConfig{
			Generate:  fixedCompleter("SELECT COUNT(*) FROM fact_sales;"),
			Summarize: fixedCompleter("There are 7 orders."),
			Runner:    fakeRunner{},
			Limiter:   rate.NewLimiter(rate.Inf, 1),
			Retry:     chat.RetryConfig{MaxRetries: 1, InitialInterval: 1, MaxInterval: 2},
		})
		if err != nil {
			t.Fatalf("NewPipeline() error: %v", err)
		}
		assistant.SetConnection(&chat.Connection{Describer: describer, Pipeline: pipeline})
	}

	return assistant, store
}

// connectServer builds a server over the assistant and an SDK client wired
// through in-memory transports, returning the client session.
func connectServer(t *testing.T, assistant *chat.Assistant) *mcp.ClientSession {
	t.Helper()

	server, err := NewServer(Config{Name: "askdw", Version: "test", Assistant: assistant})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect() error: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func callAsk(t *testing.T, cs *mcp.ClientSession, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ask_warehouse",
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(ask_warehouse) error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] type = %T, want *mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func decodeOutput(t *testing.T, result *mcp.CallToolResult) AskWarehouseOutput {
	t.Helper()
	var out AskWarehouseOutput
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("decoding tool output: %v", err)
	}
	return out
}

func TestNewServerValidation(t *testing.T) {
	assistant, _ := newTestAssistant(t, true)

	if _, err := NewServer(Config{Version: "1", Assistant: assistant}); err == nil {
		t.Error("NewServer() without name: want error")
	}
	if _, err := NewServer(Config{Name: "askdw", Assistant: assistant}); err == nil {
		t.Error("NewServer() without version: want error")
	}
	if _, err := NewServer(Config{Name: "askdw", Version: "1"}); err == nil {
		t.Error("NewServer() without assistant: want error")
	}
}

func TestListTools(t *testing.T) {
	assistant, _ := newTestAssistant(t, true)
	cs := connectServer(t, assistant)

	result, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error: %v", err)
	}
	if len(result.Tools) != 1 {
		t.Fatalf("len(Tools) = %d, want 1", len(result.Tools))
	}
	tool := result.Tools[0]
	if tool.Name != "ask_warehouse" {
		t.Errorf("tool name = %q", tool.Name)
	}
	if tool.Description == "" {
		t.Error("tool has no description")
	}
}

func TestCallToolAnswer(t *testing.T) {
	assistant, store := newTestAssistant(t, true)
	cs := connectServer(t, assistant)

	result := callAsk(t, cs, map[string]any{"question": "How many orders?"})
	if result.IsError {
		t.Fatalf("IsError result: %s", resultText(t, result))
	}

	out := decodeOutput(t, result)
	if out.Kind != string(chat.KindAnswer) {
		t.Errorf("kind = %q, want %q", out.Kind, chat.KindAnswer)
	}
	if out.Reply != "There are 7 orders." {
		t.Errorf("reply = %q", out.Reply)
	}
	if !strings.Contains(out.SQL, "SELECT") {
		t.Errorf("sql = %q", out.SQL)
	}

	id, err := uuid.Parse(out.SessionID)
	if err != nil {
		t.Fatalf("sessionId %q is not a UUID: %v", out.SessionID, err)
	}
	msgs, err := store.Messages(context.Background(), id)
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
	if len(msgs) != 3 {
		t.Errorf("len(msgs) = %d, want greeting plus one pair", len(msgs))
	}
}

func TestCallToolContinuesSession(t *testing.T) {
	assistant, store := newTestAssistant(t, true)
	cs := connectServer(t, assistant)

	first := decodeOutput(t, callAsk(t, cs, map[string]any{"question": "How many orders?"}))
	second := decodeOutput(t, callAsk(t, cs, map[string]any{
		"question":  "And last year?",
		"sessionId": first.SessionID,
	}))

	if second.SessionID != first.SessionID {
		t.Errorf("sessionId = %q, want %q", second.SessionID, first.SessionID)
	}

	msgs, err := store.Messages(context.Background(), uuid.MustParse(first.SessionID))
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
	if len(msgs) != 5 {
		t.Errorf("len(msgs) = %d, want 5", len(msgs))
	}
}

func TestCallToolClientMistakes(t *testing.T) {
	assistant, _ := newTestAssistant(t, true)
	cs := connectServer(t, assistant)

	tests := []struct {
		name     string
		args     map[string]any
		wantText string
	}{
		{
			name:     "blank question",
			args:     map[string]any{"question": "   "},
			wantText: "question is required",
		},
		{
			name:     "malformed session id",
			args:     map[string]any{"question": "How many?", "sessionId": "not-a-uuid"},
			wantText: "not a valid UUID",
		},
		{
			name:     "unknown session",
			args:     map[string]any{"question": "How many?", "sessionId": uuid.NewString()},
			wantText: "session does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callAsk(t, cs, tt.args)
			if !result.IsError {
				t.Fatal("want IsError result")
			}
			if text := resultText(t, result); !strings.Contains(text, tt.wantText) {
				t.Errorf("text = %q, want to contain %q", text, tt.wantText)
			}
		})
	}
}

func TestCallToolNotConnected(t *testing.T) {
	assistant, _ := newTestAssistant(t, false)
	cs := connectServer(t, assistant)

	result := callAsk(t, cs, map[string]any{"question": "How many orders?"})
	if !result.IsError {
		t.Fatal("want IsError result")
	}
	if text := resultText(t, result); !strings.Contains(text, "no warehouse connection") {
		t.Errorf("text = %q", text)
	}
}

func TestCallToolUnknownTool(t *testing.T) {
	assistant, _ := newTestAssistant(t, true)
	cs := connectServer(t, assistant)

	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "no_such_tool"})
	if err == nil {
		t.Fatal("CallTool(no_such_tool): want error")
	}
	if !strings.Contains(err.Error(), "no_such_tool") {
		t.Errorf("error = %q, want to contain the tool name", err.Error())
	}
}
