// Package typing implements the typing session engine: text model, keystroke
// classification, progress restore and the session state machine.
package typing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TextState is the result of loading a file's content for typing.
type TextState struct {
	Lines          []string
	CursorColumns  []int
	TypedTextLines []string
}

// InitializeTextState splits content into lines and pre-types the leading
// indentation of every line.
func InitializeTextState(content string) TextState {
	lines := SplitLines(content)
	columns := make([]int, len(lines))
	typed := make([]string, len(lines))
	for row, line := range lines {
		columns[row] = leadingIndent(line)
		typed[row] = strings.Repeat(" ", columns[row])
	}
	return TextState{
		Lines:          lines,
		CursorColumns:  columns,
		TypedTextLines: typed,
	}
}

// SplitLines splits content after every newline. The newline stays attached
// to its line and a trailing newline does not start a new empty line.
// Empty content yields a single empty line.
func SplitLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// leadingIndent returns the rune index of the first non-whitespace character.
// Lines made only of whitespace have no indentation to skip.
func leadingIndent(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			return n
		}
		n++
	}
	return 0
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func runeAt(s string, idx int) (rune, bool) {
	if idx < 0 {
		return 0, false
	}
	i := 0
	for _, r := range s {
		if i == idx {
			return r, true
		}
		i++
	}
	return 0, false
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}
