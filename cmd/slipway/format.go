package main

import (
	"os"
	"time"

	"golang.org/x/term"
)

// truncate shortens s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 1 || len([]rune(s)) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// termWidth reports the terminal width, or a sane default when stdout is
// not a terminal.
func termWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 100
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

// hashWidth picks how much of an image hash to show for the current
// terminal. Narrow terminals get the short docker-style prefix.
func hashWidth() int {
	if termWidth() < 120 {
		return 12
	}
	return 64
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}
