package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer wraps glamour with graceful degradation: if the
// renderer cannot be built the raw text is shown instead.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width <= 0 {
		width = 80
	}
	m := &markdownRenderer{width: width}
	m.renderer = buildRenderer(width)
	return m
}

func buildRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// UpdateWidth rebuilds the renderer when the terminal is resized.
func (m *markdownRenderer) UpdateWidth(width int) {
	if width <= 0 || width == m.width {
		return
	}
	m.width = width
	m.renderer = buildRenderer(width)
}

// Render renders markdown to ANSI, falling back to the raw text.
func (m *markdownRenderer) Render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
