package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the switchboard banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  ___        _ _      _    _                      _ ", "#38bdf8"},
		{" / __|_ __ _(_) |_ __| |_ | |__  ___  __ _ _ _ __| |", "#22d3ee"},
		{" \\__ \\ V  V / |  _/ _| ' \\| '_ \\/ _ \\/ _` | '_/ _` |", "#2dd4bf"},
		{" |___/\\_/\\_/|_|\\__\\__|_||_|_.__/\\___/\\__,_|_| \\__,_|", "#34d399"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String(" v"+version).Faint())
	fmt.Fprintln(w)
}
