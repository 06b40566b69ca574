// Package tui provides the Bubble Tea terminal interface: a connection
// form followed by a scrollable chat over the warehouse assistant.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/i18n"
)

// State represents the TUI state machine.
type State int

// TUI states.
const (
	StateConnect    State = iota // Connection form awaiting input
	StateConnecting              // Connect attempt in flight
	StateInput                   // Awaiting a question
	StateThinking                // Turn in flight
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100
	maxHistory  = 100
)

// turnTimeout caps a single turn, generation and execution included.
const turnTimeout = 5 * time.Minute

// Message role constants for display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2
	helpLines      = 1
	promptLines    = 1
	minViewport    = 3
)

// Message is one transcript entry for display.
type Message struct {
	Role string // "user", "assistant", "system", "error"
	Text string
}

// ConnectParams carries the connection form values.
type ConnectParams struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// ConnectFunc attempts a warehouse connection with the given parameters.
type ConnectFunc func(ctx context.Context, p ConnectParams) error

// Config wires the TUI to the application.
type Config struct {
	// Assistant resolves turns. Required.
	Assistant *chat.Assistant

	// SessionID is the conversation this TUI appends to. Required.
	SessionID uuid.UUID

	// Connect attaches the warehouse. Required; the TUI starts on the
	// connection form and only reaches the chat once it succeeds.
	Connect ConnectFunc

	// Defaults pre-fills the connection form.
	Defaults ConnectParams
}

// Model is the Bubble Tea model.
type Model struct {
	// Connection form
	fields     [fieldCount]textinput.Model
	focusIdx   int
	connect    ConnectFunc
	connectErr string

	// Chat input (textarea for multi-line, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	spinner  spinner.Model
	viewBuf  strings.Builder // reused by View to reduce allocations
	messages []Message

	viewport viewport.Model
	help     help.Model
	keys     keyMap

	// Turn lifecycle. The cancel func belongs to the in-flight turn;
	// nil between turns.
	turnCancel context.CancelFunc

	assistant *chat.Assistant
	sessionID uuid.UUID
	ctx       context.Context
	ctxCancel context.CancelFunc

	width  int
	height int

	styles Styles

	// Markdown rendering; nil degrades to plain text.
	markdown *markdownRenderer
}

// New creates the TUI model.
//
// ctx MUST be the same context passed to tea.WithContext so cancellation
// behaves consistently.
func New(ctx context.Context, cfg Config) (*Model, error) {
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if cfg.Assistant == nil {
		return nil, errors.New("tui.New: assistant is required")
	}
	if cfg.SessionID == uuid.Nil {
		return nil, errors.New("tui.New: session ID is required")
	}
	if cfg.Connect == nil {
		return nil, errors.New("tui.New: connect func is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	ta := textarea.New()
	ta.Placeholder = i18n.T("chat.placeholder")
	ta.SetHeight(1)
	ta.SetWidth(120) // updated on WindowSizeMsg
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	// Plain text styling, no backgrounds.
	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{Focused: cleanStyle, Blurred: cleanStyle})

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport keyboard handling is disabled; keys route explicitly in
	// handleKey to avoid conflicts with the textarea and history.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	m := &Model{
		assistant: cfg.Assistant,
		sessionID: cfg.SessionID,
		connect:   cfg.Connect,
		ctx:       ctx,
		ctxCancel: cancel,
		state:     StateConnect,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      help.New(),
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		history:   make([]string, 0, maxHistory),
		markdown:  newMarkdownRenderer(80),
		width:     80, // until WindowSizeMsg arrives
	}
	m.fields = newConnectFields(cfg.Defaults)
	m.focusField(0)
	return m, nil
}

// addMessage appends a transcript entry and enforces maxMessages.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}
