package typing

import "github.com/verte-zerg/codetype/internal/model"

// CalculateTypos diffs every typed line against its target and returns one
// typo per differing position, in row then column order.
func CalculateTypos(typedTextLines, targetTextLines []string) []model.Typo {
	typos := []model.Typo{}
	for row, typed := range typedTextLines {
		target := ""
		if row < len(targetTextLines) {
			target = targetTextLines[row]
		}
		targetRunes := []rune(target)
		column := 0
		for _, ch := range typed {
			if column >= len(targetRunes) || targetRunes[column] != ch {
				typos = append(typos, model.Typo{Row: row, Column: column, Character: string(ch)})
			}
			column++
		}
	}
	return typos
}

// typoMap indexes the typos of one row by column. Later entries win.
func typoMap(row int, typos []model.Typo) map[int]string {
	m := map[int]string{}
	for _, typo := range typos {
		if typo.Row == row {
			m[typo.Column] = typo.Character
		}
	}
	return m
}

// RestoreTypedTextLine overlays the typos recorded for row onto target.
func RestoreTypedTextLine(row int, target string, typos []model.Typo) string {
	overlay := typoMap(row, typos)
	if len(overlay) == 0 {
		return target
	}
	out := make([]rune, 0, len(target))
	column := 0
	for _, ch := range target {
		if typed, ok := overlay[column]; ok && typed != "" {
			out = append(out, []rune(typed)[0])
		} else {
			out = append(out, ch)
		}
		column++
	}
	return string(out)
}
