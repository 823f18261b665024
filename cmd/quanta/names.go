package main

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// padName truncates or pads s to exactly width display cells.
func padName(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}
