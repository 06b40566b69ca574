package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/askdw/askdw/internal/chat"
)

// goleakOptions returns standard goleak options for all TUI tests.
// Filters out persistent goroutines that are expected to exist:
// - HTTP/2 connection pool goroutines
// - OpenCensus stats worker (global singleton, can't be stopped)
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	}
}

// newTestModel creates a chat-state model with enough initialized for
// handler and view tests.
func newTestModel() *Model {
	ta := textarea.New()
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))

	return &Model{
		state:    StateInput,
		input:    ta,
		spinner:  sp,
		viewport: vp,
		help:     help.New(),
		keys:     newKeyMap(),
		history:  make([]string, 0),
		styles:   DefaultStyles(),
		markdown: newMarkdownRenderer(80),
		fields:   newConnectFields(ConnectParams{}),
		width:    80,
		ctx:      context.Background(),
	}
}

func connectNoop(context.Context, ConnectParams) error { return nil }

func TestNew_ErrorOnNilContext(t *testing.T) {
	//lint:ignore SA1012 intentionally testing nil context handling
	_, err := New(nil, Config{}) //nolint:staticcheck
	if err == nil {
		t.Error("Expected error for nil context")
	}
}

func TestNew_ErrorOnMissingConfig(t *testing.T) {
	// A zero-value assistant is enough for argument validation; no
	// method is ever called on it here.
	assistant := &chat.Assistant{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil assistant", Config{SessionID: uuid.New(), Connect: connectNoop}},
		{"nil session ID", Config{Assistant: assistant, Connect: connectNoop}},
		{"nil connect", Config{Assistant: assistant, SessionID: uuid.New()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestNew_StartsOnConnectForm(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, err := New(context.Background(), Config{
		Assistant: &chat.Assistant{},
		SessionID: uuid.New(),
		Connect:   connectNoop,
		Defaults:  ConnectParams{Host: "db.internal", Database: "dw"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.ctxCancel()

	if m.state != StateConnect {
		t.Errorf("Expected StateConnect, got %d", m.state)
	}
	if got := m.fields[fieldHost].Value(); got != "db.internal" {
		t.Errorf("Host default not applied: %q", got)
	}
	if got := m.fields[fieldDatabase].Value(); got != "dw" {
		t.Errorf("Database default not applied: %q", got)
	}
	if m.focusIdx != fieldHost {
		t.Errorf("Expected focus on host field, got %d", m.focusIdx)
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	if cmd := m.Init(); cmd == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

func TestModel_HandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		cmd      string
		wantExit bool
		wantMsgs int // number of messages added
	}{
		{"help", "/help", false, 1},
		{"clear", "/clear", false, 0}, // clears messages
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/unknown", false, 1}, // error message
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel()

			// Pre-populate with a message for /clear test
			m.messages = []Message{{Role: roleUser, Text: "hello"}}

			model, cmd := m.handleSlashCommand(tt.cmd)
			result := model.(*Model)

			if tt.wantExit {
				if cmd == nil {
					t.Error("Expected quit command for exit")
				}
				return
			}
			if tt.cmd == cmdClear {
				if len(result.messages) != 0 {
					t.Error("/clear should clear messages")
				}
				return
			}
			if len(result.messages) != 1+tt.wantMsgs {
				t.Errorf("Expected %d messages, got %d", 1+tt.wantMsgs, len(result.messages))
			}
		})
	}
}

func TestModel_HistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.history = []string{"first", "second", "third"}
	m.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Should stay at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
		{1, ""}, // Should stay empty
	}

	for i, tt := range tests {
		model, _ := m.navigateHistory(tt.delta)
		m = model.(*Model)
		if m.input.Value() != tt.expected {
			t.Errorf("Step %d: got %q, want %q", i, m.input.Value(), tt.expected)
		}
	}
}

func TestModel_SubmitTrimsAndIgnoresEmpty(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("   \n  ")

	model, cmd := m.handleSubmit()
	result := model.(*Model)

	if cmd != nil {
		t.Error("Empty input should not start a turn")
	}
	if result.state != StateInput {
		t.Error("State should stay StateInput")
	}
	if len(result.messages) != 0 {
		t.Error("No message should be recorded")
	}
}

func TestModel_SubmitStartsTurn(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("How many customers do we have?")

	model, cmd := m.handleSubmit()
	result := model.(*Model)

	if result.state != StateThinking {
		t.Error("Submit should enter StateThinking")
	}
	if cmd == nil {
		t.Error("Submit should return a turn command")
	}
	if result.turnCancel == nil {
		t.Error("Submit should install a cancel func")
	}
	if len(result.history) != 1 || result.history[0] != "How many customers do we have?" {
		t.Errorf("History not recorded: %v", result.history)
	}
	if len(result.messages) != 1 || result.messages[0].Role != roleUser {
		t.Errorf("User message not recorded: %v", result.messages)
	}
	// Release the timeout context without executing the turn.
	result.cancelTurn()
}

func TestModel_CtrlC_ClearsInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("some input")

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("First Ctrl+C should clear input")
	}
}

func TestModel_DoubleCtrlC_Exits(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.lastCtrlC = time.Now()

	_, cmd := m.handleCtrlC()

	if cmd == nil {
		t.Error("Double Ctrl+C should return quit command")
	}
}

func TestModel_CtrlC_CancelsThinking(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateThinking
	canceled := false
	m.turnCancel = func() { canceled = true }

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if !canceled {
		t.Error("Ctrl+C during thinking should cancel the turn")
	}
	if result.turnCancel != nil {
		t.Error("Cancel func should be cleared")
	}
	// The state flips back only when the canceled turn reports in.
	if result.state != StateThinking {
		t.Error("State should remain StateThinking until the turn reports back")
	}
}

func TestModel_Update_KeyPress(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("test")

	// Simulate Ctrl+C (should clear input)
	key := tea.Key{Code: 'c', Mod: tea.ModCtrl}
	msg := tea.KeyPressMsg(key)

	model, _ := m.Update(msg)
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("Ctrl+C should clear input")
	}
}

func TestModel_ConnectFormFocusCycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateConnect
	m.focusField(fieldHost)

	tab := tea.KeyPressMsg(tea.Key{Code: tea.KeyTab})
	for want := 1; want < fieldCount; want++ {
		model, _ := m.handleConnectKey(tab)
		m = model.(*Model)
		if m.focusIdx != want {
			t.Fatalf("After %d tabs: focus %d, want %d", want, m.focusIdx, want)
		}
	}

	// Wraps around past the last field.
	model, _ := m.handleConnectKey(tab)
	m = model.(*Model)
	if m.focusIdx != fieldHost {
		t.Errorf("Tab should wrap to host, got %d", m.focusIdx)
	}

	// Shift+Tab wraps backwards.
	back := tea.KeyPressMsg(tea.Key{Code: tea.KeyTab, Mod: tea.ModShift})
	model, _ = m.handleConnectKey(back)
	m = model.(*Model)
	if m.focusIdx != fieldDatabase {
		t.Errorf("Shift+Tab should wrap to database, got %d", m.focusIdx)
	}
}

func TestModel_ConnectResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("success enters chat", func(t *testing.T) {
		m := newTestModel()
		m.state = StateConnecting

		model, _ := m.handleConnectResult(connectResultMsg{})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Successful connect should enter StateInput")
		}
		if len(result.messages) != 2 {
			t.Fatalf("Expected status + greeting, got %d messages", len(result.messages))
		}
		if result.messages[0].Role != roleSystem {
			t.Error("First message should be the connection status")
		}
		if result.messages[1].Role != roleAssistant || result.messages[1].Text != chat.Greeting {
			t.Error("Second message should be the assistant greeting")
		}
	})

	t.Run("failure re-enables form", func(t *testing.T) {
		m := newTestModel()
		m.state = StateConnecting

		model, _ := m.handleConnectResult(connectResultMsg{err: errors.New("dial tcp: refused")})
		result := model.(*Model)

		if result.state != StateConnect {
			t.Error("Failed connect should return to the form")
		}
		if result.connectErr == "" {
			t.Error("Failure should set an inline error")
		}
		if !strings.Contains(result.connectErr, "refused") {
			t.Errorf("Inline error should carry the cause: %q", result.connectErr)
		}
	})
}

func TestModel_TurnMessages(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("answer", func(t *testing.T) {
		m := newTestModel()
		m.state = StateThinking
		m.turnCancel = func() {}

		model, _ := m.Update(turnDoneMsg{reply: &chat.Reply{Kind: chat.KindAnswer, Text: "There are 42 customers."}})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after turn done")
		}
		if result.turnCancel != nil {
			t.Error("Cancel func should be cleared")
		}
		if len(result.messages) != 1 || result.messages[0].Role != roleAssistant {
			t.Errorf("Expected one assistant message, got %v", result.messages)
		}
	})

	t.Run("pipeline failure renders as error", func(t *testing.T) {
		m := newTestModel()
		m.state = StateThinking

		model, _ := m.Update(turnDoneMsg{reply: &chat.Reply{Kind: chat.KindFailure, Text: chat.FailureText}})
		result := model.(*Model)

		if len(result.messages) != 1 || result.messages[0].Role != roleError {
			t.Errorf("Failure reply should render as error, got %v", result.messages)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		m := newTestModel()
		m.state = StateThinking

		model, _ := m.Update(turnErrorMsg{err: context.Canceled})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after cancellation")
		}
		if len(result.messages) != 1 || result.messages[0].Role != roleSystem {
			t.Errorf("Cancellation should read as a system note, got %v", result.messages)
		}
	})
}

func TestTurnErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantRole string
	}{
		{"canceled", context.Canceled, roleSystem},
		{"timeout", context.DeadlineExceeded, roleError},
		{"not connected", chat.ErrNotConnected, roleSystem},
		{"other", errors.New("boom"), roleError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := turnErrorMessage(tt.err)
			if got.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", got.Role, tt.wantRole)
			}
			if got.Text == "" {
				t.Error("Text should not be empty")
			}
		})
	}
}

func TestRunTurn_RecoversPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	ctx, cancel := context.WithCancel(context.Background())

	// A nil assistant panics inside the turn; the command must convert
	// that into an error message instead of crashing the program.
	cmd := runTurn(ctx, cancel, nil, uuid.New(), "question")
	msg := cmd()

	if _, ok := msg.(turnErrorMsg); !ok {
		t.Errorf("Expected turnErrorMsg, got %T", msg)
	}
}

func TestModel_AddMessageBound(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	for i := 0; i < maxMessages+10; i++ {
		m.addMessage(Message{Role: roleUser, Text: "x"})
	}
	if len(m.messages) != maxMessages {
		t.Errorf("Expected %d messages, got %d", maxMessages, len(m.messages))
	}
}

func TestModel_View_ContainsContent(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("connect form", func(t *testing.T) {
		m := newTestModel()
		m.state = StateConnect

		view := m.View()
		if view.Content == nil {
			t.Error("View content should not be nil")
		}
	})

	t.Run("chat", func(t *testing.T) {
		m := newTestModel()
		m.addMessage(Message{Role: roleUser, Text: "hello"})
		m.rebuildViewportContent()

		view := m.View()
		if view.Content == nil {
			t.Error("View content should not be nil")
		}
	})
}
