package main

import (
	"strconv"
	"strings"
)

type Color int

const (
	Bold     Color = 1
	FgRed    Color = 31
	FgGreen  Color = 32
	FgYellow Color = 33
	FgCyan   Color = 36
)

// WithColors wraps s in ANSI SGR codes, which gocui views render.
func WithColors(s string, colors ...Color) string {
	if len(colors) == 0 {
		return s
	}

	codes := make([]string, len(colors))
	for i, c := range colors {
		codes[i] = strconv.Itoa(int(c))
	}

	return "\033[" + strings.Join(codes, ";") + "m" + s + "\033[0m"
}
