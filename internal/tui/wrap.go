package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/codetype/internal/typing"
)

const (
	wrongSpaceGlyph   = '•'
	wrongNewlineGlyph = '¶'
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

// buildStyledRunes styles one target line against what was typed on it. A
// newline is only drawn when it was mistyped or holds the cursor.
func buildStyledRunes(targetRunes, inputRunes []rune, cursorIndex int) []styledRune {
	words := findWords(targetRunes)
	currentWord := wordForCursor(words, cursorIndex)

	out := make([]styledRune, 0, len(targetRunes))
	for i, target := range targetRunes {
		displayed := target
		if target == '\t' || target == '\n' {
			displayed = ' '
		}
		style := pendingStyle
		typed := i < len(inputRunes)
		if typed {
			switch {
			case inputRunes[i] == target:
				if target == '\n' {
					continue
				}
				style = correctStyle
			case target == '\n':
				displayed = wrongNewlineGlyph
				style = incorrectStyle
			case target == ' ' || target == '\t':
				displayed = wrongSpaceGlyph
				style = incorrectStyle
			default:
				style = incorrectStyle
			}
		} else if !isBlank(target) && currentWord != nil && i >= currentWord.start && i < currentWord.end {
			style = currentWordStyle
		}
		isCursor := i == cursorIndex && i >= len(inputRunes)
		if target == '\n' && !typed && !isCursor {
			continue
		}
		if isCursor {
			style = style.Underline(true)
		}
		out = append(out, styledRune{
			s:       style.Render(string(displayed)),
			width:   runewidth.RuneWidth(displayed),
			isSpace: isBlank(target),
		})
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func findWords(targetRunes []rune) []wordRange {
	words := []wordRange{}
	start := -1
	for i, r := range targetRunes {
		if isBlank(r) {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(targetRunes)})
	}
	return words
}

func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if len(words) == 0 || cursorIndex < 0 {
		return nil
	}
	for i, w := range words {
		if cursorIndex < w.end {
			return &words[i]
		}
	}
	return nil
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx > 0 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx+1]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}

// renderText draws every target line of the snapshot wrapped to width. It
// returns the first and last visual line of the cursor row.
func renderText(snap typing.Snapshot, width int) (string, int, int) {
	rendered := make([]string, 0, len(snap.TargetLines))
	visual, cursorStart, cursorEnd := 0, 0, 0
	for row, target := range snap.TargetLines {
		typed := ""
		if row < len(snap.TypedLines) {
			typed = snap.TypedLines[row]
		}
		cursor := -1
		if row == snap.CursorRow && snap.State != typing.StateCompleted && row < len(snap.CursorColumns) {
			cursor = snap.CursorColumns[row]
		}
		wrapped := wrapStyledRunes(buildStyledRunes([]rune(target), []rune(typed), cursor), width)
		height := strings.Count(wrapped, "\n") + 1
		if row == snap.CursorRow {
			cursorStart, cursorEnd = visual, visual+height-1
		}
		visual += height
		rendered = append(rendered, wrapped)
	}
	return strings.Join(rendered, "\n"), cursorStart, cursorEnd
}
