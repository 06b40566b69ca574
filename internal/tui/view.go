package tui

import (
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/askdw/askdw/internal/i18n"
)

// View renders either the connection form or the chat layout.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	switch m.state {
	case StateConnect, StateConnecting:
		m.renderConnectForm()
	default:
		m.renderChat()
	}

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

func (m *Model) renderConnectForm() {
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.styles.Header.Render(i18n.T("connect.title")))
	m.viewBuf.WriteString("\n\n")

	for i := range m.fields {
		m.viewBuf.WriteString("  ")
		m.viewBuf.WriteString(m.styles.Label.Render(fieldLabel(i)))
		m.viewBuf.WriteString("\n  ")
		m.viewBuf.WriteString(m.fields[i].View())
		m.viewBuf.WriteString("\n")
	}

	m.viewBuf.WriteString("\n")
	switch {
	case m.state == StateConnecting:
		m.viewBuf.WriteString("  ")
		m.viewBuf.WriteString(m.spinner.View())
		m.viewBuf.WriteString(" ")
		m.viewBuf.WriteString(m.styles.System.Render(i18n.T("connect.working")))
		m.viewBuf.WriteString("\n")
	case m.connectErr != "":
		m.viewBuf.WriteString("  ")
		m.viewBuf.WriteString(m.styles.Error.Render(m.connectErr))
		m.viewBuf.WriteString("\n")
	}

	m.viewBuf.WriteString("\n  ")
	m.viewBuf.WriteString(m.styles.System.Render(i18n.T("connect.hint")))
	m.viewBuf.WriteString("\n")
}

func (m *Model) renderChat() {
	m.viewBuf.WriteString(m.viewport.View())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.renderSeparator())
	m.viewBuf.WriteString("\n")

	m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	m.viewBuf.WriteString(m.input.View())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.renderSeparator())
	m.viewBuf.WriteString("\n")
	m.viewBuf.WriteString(m.renderStatusBar())
}

// rebuildViewportContent re-renders the conversation into the viewport.
// Called on new messages and on resize, not per frame.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	b.WriteString(m.styles.RenderBanner())
	b.WriteString("\n")
	b.WriteString(m.styles.RenderWelcomeTips())
	b.WriteString("\n")

	for _, msg := range m.messages {
		switch msg.Role {
		case roleUser:
			b.WriteString(m.styles.User.Render("You> "))
			b.WriteString(msg.Text)
		case roleAssistant:
			b.WriteString(m.styles.Assistant.Render("askdw> "))
			b.WriteString("\n")
			b.WriteString(m.markdown.Render(msg.Text))
		case roleSystem:
			b.WriteString(m.styles.System.Render(msg.Text))
		case roleError:
			b.WriteString(m.styles.Error.Render("Error: " + msg.Text))
		}
		b.WriteString("\n\n")
	}

	if m.state == StateThinking {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.styles.System.Render(i18n.T("chat.thinking")))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch m.state {
	case StateThinking:
		bindings = []key.Binding{
			m.keys.EscCancel,
			m.keys.Cancel,
			m.keys.ScrollUp,
			m.keys.ScrollDown,
		}
	default:
		bindings = []key.Binding{
			m.keys.Submit,
			m.keys.NewLine,
			m.keys.History,
			m.keys.Cancel,
			m.keys.Quit,
			m.keys.ScrollUp,
		}
	}
	return m.styles.StatusBar.Render(m.help.ShortHelpView(bindings))
}
