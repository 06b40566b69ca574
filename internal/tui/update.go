package tui

import (
	"context"
	"errors"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/i18n"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if m.state == StateConnect || m.state == StateConnecting {
			return m.handleConnectKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Viewport height: total minus input, separators and help bar.
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // room for the "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state == StateThinking {
			m.rebuildViewportContent()
		}
		return m, cmd

	case connectResultMsg:
		return m.handleConnectResult(msg)

	case turnDoneMsg:
		m.state = StateInput
		m.turnCancel = nil
		m.addMessage(replyMessage(msg.reply))
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()

	case turnErrorMsg:
		m.state = StateInput
		m.turnCancel = nil
		m.addMessage(turnErrorMessage(msg.err))
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}

	if m.state == StateConnect {
		var cmd tea.Cmd
		m.fields[m.focusIdx], cmd = m.fields[m.focusIdx].Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// replyMessage maps a resolved reply to its display form. Failures render
// in error styling; everything else reads as the assistant.
func replyMessage(reply *chat.Reply) Message {
	if reply.Kind == chat.KindFailure {
		return Message{Role: roleError, Text: reply.Text}
	}
	return Message{Role: roleAssistant, Text: reply.Text}
}

// turnErrorMessage maps a turn error to its display form.
func turnErrorMessage(err error) Message {
	switch {
	case errors.Is(err, context.Canceled):
		return Message{Role: roleSystem, Text: "(Canceled)"}
	case errors.Is(err, context.DeadlineExceeded):
		return Message{Role: roleError, Text: "The request timed out. Try a simpler question."}
	case errors.Is(err, chat.ErrNotConnected):
		return Message{Role: roleSystem, Text: i18n.T("chat.not_connected")}
	default:
		return Message{Role: roleError, Text: err.Error()}
	}
}
