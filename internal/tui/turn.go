package tui

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/chat"
)

// turnDoneMsg carries a resolved turn.
type turnDoneMsg struct {
	reply *chat.Reply
}

// turnErrorMsg carries a failed turn, cancellation included.
type turnErrorMsg struct {
	err error
}

// runTurn resolves one turn off the event loop. A turn is a single
// request/response, so the result comes back as one message rather than
// a stream of events. The cancel func releases the timeout's resources
// on every exit path; Update holds a copy for user-initiated cancel.
func runTurn(ctx context.Context, cancel context.CancelFunc, assistant *chat.Assistant, sessionID uuid.UUID, question string) tea.Cmd {
	return func() (msg tea.Msg) {
		defer cancel()

		// Panic recovery prevents a wedged TUI.
		defer func() {
			if r := recover(); r != nil {
				msg = turnErrorMsg{err: fmt.Errorf("turn panic: %v", r)}
			}
		}()

		reply, err := assistant.Respond(ctx, sessionID, question)
		if err != nil {
			return turnErrorMsg{err: err}
		}
		return turnDoneMsg{reply: reply}
	}
}
