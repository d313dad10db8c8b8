package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	nodeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")) // Cyan

	nextStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("13")) // Magenta

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))
)

// StepHeader renders "Node → NEXT" for a completed step.
func StepHeader(step int, node, next string) string {
	head := fmt.Sprintf("%s %s", dimStyle.Render(fmt.Sprintf("[%d]", step)), nodeStyle.Render(title(node)))
	if next == "" {
		return head
	}
	return fmt.Sprintf("%s %s %s", head, dimStyle.Render("→"), nextStyle.Render(strings.ToUpper(next)))
}

// Warning renders a non-fatal notice.
func Warning(msg string) string {
	return warnStyle.Render("! " + msg)
}

// Error renders a failure.
func Error(msg string) string {
	return errorStyle.Render("✗ " + msg)
}

// Dim renders secondary text.
func Dim(msg string) string {
	return dimStyle.Render(msg)
}

func title(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
