package picker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// escapeRE matches terminal escape sequences: CSI, OSC terminated by BEL or
// ST, and the short ESC-prefixed forms such as charset selection.
var escapeRE = regexp.MustCompile(`\x1b(?:\[[0-?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[ -/]*[0-~])`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return escapeRE.ReplaceAllString(s, "")
}

// Sanitize makes a name or path read from editor storage safe to draw on a
// single terminal line.
func Sanitize(s string) string {
	s = StripANSI(strings.ToValidUTF8(s, "�"))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// MiddleTruncate shortens s to at most width columns by replacing its middle
// with an ellipsis, so a long path keeps both its root and its leaf.
func MiddleTruncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width < 3 {
		return runewidth.Truncate(s, width, "")
	}

	tail := (width - 1) / 2
	head := width - 1 - tail
	return runewidth.Truncate(s, head, "") + "…" + lastColumns(s, tail)
}

// lastColumns returns the longest suffix of s at most width columns wide.
func lastColumns(s string, width int) string {
	runes := []rune(s)
	i, w := len(runes), 0
	for i > 0 {
		rw := runewidth.RuneWidth(runes[i-1])
		if w+rw > width {
			break
		}
		w += rw
		i--
	}
	return string(runes[i:])
}
