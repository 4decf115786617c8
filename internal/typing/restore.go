package typing

import (
	"strings"

	"github.com/verte-zerg/codetype/internal/model"
)

// RestoreCompletedRows rebuilds every row before currentRow as fully typed,
// with recorded typos overlaid. Rows from currentRow on keep their
// indentation-only state.
func RestoreCompletedRows(currentRow int, lines []string, typos []model.Typo, initialCursorColumns []int) ([]int, []string) {
	columns := make([]int, len(initialCursorColumns))
	copy(columns, initialCursorColumns)
	typed := make([]string, len(lines))
	for row := range lines {
		typed[row] = strings.Repeat(" ", initialCursorColumns[row])
	}
	for row := 0; row < currentRow && row < len(lines); row++ {
		typed[row] = RestoreTypedTextLine(row, lines[row], typos)
		columns[row] = runeLen(lines[row])
	}
	return columns, typed
}

// RestoreCurrentRow rebuilds the first currentColumn characters of the row
// being typed when progress was saved.
func RestoreCurrentRow(currentRow, currentColumn int, lines []string, typos []model.Typo, columns []int, typed []string) ([]int, []string) {
	target := firstRunes(lines[currentRow], currentColumn)
	typed[currentRow] = RestoreTypedTextLine(currentRow, target, typos)
	columns[currentRow] = currentColumn
	return columns, typed
}

// Restore seeds a buffer from persisted progress. Resume points outside the
// text are clamped into it.
func Restore(text TextState, progress model.TypingProgress) Buffer {
	row, column := clampResumePoint(text.Lines, progress.Row, progress.Column)
	columns, typed := RestoreCompletedRows(row, text.Lines, progress.Typos, text.CursorColumns)
	columns, typed = RestoreCurrentRow(row, column, text.Lines, progress.Typos, columns, typed)
	return Buffer{
		Target:  text.Lines,
		Typed:   typed,
		Columns: columns,
		Row:     row,
	}
}

func clampResumePoint(lines []string, row, column int) (int, int) {
	if row < 0 {
		row = 0
	}
	if row > len(lines)-1 {
		row = len(lines) - 1
	}
	if column < 0 {
		column = 0
	}
	if limit := runeLen(lines[row]); column > limit {
		column = limit
	}
	return row, column
}
