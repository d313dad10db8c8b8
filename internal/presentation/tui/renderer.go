package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour-backed renderer. It falls back to the raw
// text when the terminal style cannot be resolved.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return PlainRenderer
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// PlainRenderer returns the text unchanged, with a trailing newline.
func PlainRenderer(markdown string) (string, error) {
	return strings.TrimRight(markdown, "\n") + "\n", nil
}
