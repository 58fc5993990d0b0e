package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the latentscope banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// A dark-to-light ramp, like the decoded digits.
	lines := []struct {
		text, color string
	}{
		{"  _       _             _                          ", "#4b5563"},
		{" | | __ _| |_ ___ _ __ | |_ ___  ___ ___  _ __   ___ ", "#6b7280"},
		{" | |/ _` | __/ _ \\ '_ \\| __/ __|/ __/ _ \\| '_ \\ / _ \\", "#9ca3af"},
		{" | | (_| | ||  __/ | | | |_\\__ \\ (_| (_) | |_) |  __/", "#d1d5db"},
		{" |_|\\__,_|\\__\\___|_| |_|\\__|___/\\___\\___/| .__/ \\___|", "#e5e7eb"},
		{"                                         |_|         ", "#f9fafb"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
