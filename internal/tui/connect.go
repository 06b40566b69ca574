package tui

import (
	"context"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/i18n"
)

// Connection form field order.
const (
	fieldHost = iota
	fieldPort
	fieldUser
	fieldPassword
	fieldDatabase
	fieldCount
)

// connectResultMsg reports one connect attempt.
type connectResultMsg struct {
	err error
}

// newConnectFields builds the form inputs pre-filled with defaults.
func newConnectFields(defaults ConnectParams) [fieldCount]textinput.Model {
	var fields [fieldCount]textinput.Model
	for i := range fields {
		in := textinput.New()
		in.Prompt = "> "
		in.CharLimit = 128
		fields[i] = in
	}

	fields[fieldHost].Placeholder = "localhost"
	fields[fieldHost].SetValue(defaults.Host)
	fields[fieldPort].Placeholder = "3306"
	fields[fieldPort].SetValue(defaults.Port)
	fields[fieldUser].Placeholder = "root"
	fields[fieldUser].SetValue(defaults.User)
	fields[fieldPassword].EchoMode = textinput.EchoPassword
	fields[fieldPassword].SetValue(defaults.Password)
	fields[fieldDatabase].Placeholder = "AdventureWorksDW2022_copy"
	fields[fieldDatabase].SetValue(defaults.Database)

	return fields
}

// fieldLabel returns the localized label for a form field.
func fieldLabel(idx int) string {
	switch idx {
	case fieldHost:
		return i18n.T("connect.host")
	case fieldPort:
		return i18n.T("connect.port")
	case fieldUser:
		return i18n.T("connect.user")
	case fieldPassword:
		return i18n.T("connect.password")
	case fieldDatabase:
		return i18n.T("connect.database")
	}
	return ""
}

// focusField moves focus to the given field index.
func (m *Model) focusField(idx int) tea.Cmd {
	m.focusIdx = idx
	var cmd tea.Cmd
	for i := range m.fields {
		if i == idx {
			cmd = m.fields[i].Focus()
		} else {
			m.fields[i].Blur()
		}
	}
	return cmd
}

// formParams collects the current form values.
func (m *Model) formParams() ConnectParams {
	return ConnectParams{
		Host:     m.fields[fieldHost].Value(),
		Port:     m.fields[fieldPort].Value(),
		User:     m.fields[fieldUser].Value(),
		Password: m.fields[fieldPassword].Value(),
		Database: m.fields[fieldDatabase].Value(),
	}
}

// handleConnectKey drives the connection form. Enter submits from any
// field; tab and arrows move between fields; esc quits.
func (m *Model) handleConnectKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 && k.Code == 'c' {
		return m, m.cleanup()
	}

	// Keys are ignored while a connect attempt is in flight, except quit.
	if m.state == StateConnecting {
		if k.Code == tea.KeyEscape {
			return m, m.cleanup()
		}
		return m, nil
	}

	switch k.Code {
	case tea.KeyEscape:
		return m, m.cleanup()

	case tea.KeyEnter:
		return m.submitConnect()

	case tea.KeyTab:
		if k.Mod&tea.ModShift != 0 {
			return m, m.focusField((m.focusIdx + fieldCount - 1) % fieldCount)
		}
		return m, m.focusField((m.focusIdx + 1) % fieldCount)

	case tea.KeyDown:
		return m, m.focusField((m.focusIdx + 1) % fieldCount)

	case tea.KeyUp:
		return m, m.focusField((m.focusIdx + fieldCount - 1) % fieldCount)
	}

	var cmd tea.Cmd
	m.fields[m.focusIdx], cmd = m.fields[m.focusIdx].Update(msg)
	return m, cmd
}

// submitConnect starts a connect attempt with the current form values.
func (m *Model) submitConnect() (tea.Model, tea.Cmd) {
	m.state = StateConnecting
	m.connectErr = ""
	return m, tea.Batch(
		m.spinner.Tick,
		runConnect(m.ctx, m.connect, m.formParams()),
	)
}

// runConnect performs the connect attempt off the event loop.
func runConnect(ctx context.Context, connect ConnectFunc, p ConnectParams) tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg{err: connect(ctx, p)}
	}
}

// handleConnectResult resolves a connect attempt: failure re-enables the
// form with an inline message, success enters the chat.
func (m *Model) handleConnectResult(msg connectResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.state = StateConnect
		m.connectErr = i18n.Sprintf("connect.failure", msg.err)
		return m, m.focusField(m.focusIdx)
	}

	m.state = StateInput
	m.addMessage(Message{Role: roleSystem, Text: i18n.T("connect.success")})
	m.addMessage(Message{Role: roleAssistant, Text: chat.Greeting})
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, m.input.Focus()
}
