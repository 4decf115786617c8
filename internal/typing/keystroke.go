package typing

// KeyKind classifies a logical input event.
type KeyKind int

// Key kinds. Every key that is not a printable rune, Enter or Backspace is
// KeyOther and is ignored.
const (
	KeyOther KeyKind = iota
	KeyRune
	KeyEnter
	KeyBackspace
)

// Key is one logical input event.
type Key struct {
	Kind KeyKind
	Rune rune
}

// RuneKey returns a printable character key. Space is a rune like any other.
func RuneKey(r rune) Key {
	return Key{Kind: KeyRune, Rune: r}
}

// EnterKey returns the Enter key, typed as a newline.
func EnterKey() Key {
	return Key{Kind: KeyEnter, Rune: '\n'}
}

// BackspaceKey returns the Backspace key.
func BackspaceKey() Key {
	return Key{Kind: KeyBackspace}
}

// Verdict is the correctness of a classified keystroke.
type Verdict int

// Verdicts. VerdictNone is returned for keys that carry no correctness, such
// as Backspace or input past the end of the text.
const (
	VerdictNone Verdict = iota
	VerdictCorrect
	VerdictTypo
)

// Buffer is the typed-versus-target state of one file.
type Buffer struct {
	Target  []string
	Typed   []string
	Columns []int
	Row     int
}

// NewBuffer returns the indentation-only buffer for text.
func NewBuffer(text TextState) Buffer {
	return Buffer{
		Target:  text.Lines,
		Typed:   append([]string(nil), text.TypedTextLines...),
		Columns: append([]int(nil), text.CursorColumns...),
		Row:     0,
	}
}

// Clone returns a deep copy of the mutable parts of b.
func (b Buffer) Clone() Buffer {
	return Buffer{
		Target:  b.Target,
		Typed:   append([]string(nil), b.Typed...),
		Columns: append([]int(nil), b.Columns...),
		Row:     b.Row,
	}
}

// Empty reports whether the buffer holds no text at all.
func (b Buffer) Empty() bool {
	return len(b.Target) == 0
}

// IsComplete reports whether the cursor sits at the end of the last line.
func (b Buffer) IsComplete() bool {
	if b.Empty() {
		return false
	}
	last := len(b.Target) - 1
	return b.Row == last && b.Columns[last] == runeLen(b.Target[last])
}

// Column returns the cursor column of the current row.
func (b Buffer) Column() int {
	if b.Empty() {
		return 0
	}
	return b.Columns[b.Row]
}

// HandleCharacterInput types ch at the cursor. The column is capped at the
// line length and the row advances once the line is fully typed. Input at the
// end of the text leaves the buffer unchanged.
func HandleCharacterInput(b Buffer, ch rune) (Buffer, Verdict) {
	if b.Empty() || b.IsComplete() {
		return b, VerdictNone
	}
	next := b.Clone()
	row := b.Row
	lineLen := runeLen(b.Target[row])

	target, _ := runeAt(b.Target[row], b.Columns[row])
	verdict := VerdictTypo
	if target == ch {
		verdict = VerdictCorrect
	}

	next.Typed[row] += string(ch)
	next.Columns[row] = min(lineLen, b.Columns[row]+1)
	if next.Columns[row] == lineLen {
		next.Row = min(len(b.Target)-1, row+1)
	}
	return next, verdict
}

// HandleBackspace removes the last typed character, stepping back to the end
// of the previous row when the current row is empty. At the very start of the
// text it is a no-op.
func HandleBackspace(b Buffer) Buffer {
	if b.Empty() {
		return b
	}
	backspaced := b.Columns[b.Row] - 1
	if b.Row == 0 && backspaced < 0 {
		return b
	}
	next := b.Clone()
	row := b.Row
	if backspaced < 0 {
		row = b.Row - 1
		backspaced = b.Columns[row] - 1
	}
	next.Row = row
	next.Typed[row] = trimLastRune(b.Typed[row])
	next.Columns[row] = backspaced
	return next
}

// Classify applies key to b. handled is false for ignored keys.
func Classify(b Buffer, key Key) (next Buffer, verdict Verdict, handled bool) {
	switch key.Kind {
	case KeyRune:
		next, verdict = HandleCharacterInput(b, key.Rune)
		return next, verdict, true
	case KeyEnter:
		next, verdict = HandleCharacterInput(b, '\n')
		return next, verdict, true
	case KeyBackspace:
		return HandleBackspace(b), VerdictNone, true
	default:
		return b, VerdictNone, false
	}
}
