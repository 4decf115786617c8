package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/codetype/internal/typing"
)

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Open  key.Binding
	Next  key.Binding
	Start key.Binding
	Pause key.Binding
	Reset key.Binding
	Save  key.Binding
	Back  key.Binding
	Quit  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Next:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next untyped")),
		Start: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")),
		Pause: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "pause/resume")),
		Reset: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		Save:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "retry save")),
		Back:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "files")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) filesHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Next, k.Quit}
}

func (k keyMap) typingHelp(state typing.State) []key.Binding {
	switch state {
	case typing.StateReady:
		return []key.Binding{k.Start, k.Back, k.Quit}
	case typing.StateCompleted:
		return []key.Binding{k.Reset, k.Back, k.Quit}
	default:
		return []key.Binding{k.Pause, k.Reset, k.Save, k.Back, k.Quit}
	}
}

// typingKeys maps a terminal key press to typing input. Pasted text arrives
// as several runes at once.
func typingKeys(msg tea.KeyMsg) []typing.Key {
	switch msg.Type {
	case tea.KeyRunes:
		keys := make([]typing.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			if r == '\n' || r == '\r' {
				keys = append(keys, typing.EnterKey())
				continue
			}
			keys = append(keys, typing.RuneKey(r))
		}
		return keys
	case tea.KeySpace:
		return []typing.Key{typing.RuneKey(' ')}
	case tea.KeyEnter:
		return []typing.Key{typing.EnterKey()}
	case tea.KeyBackspace:
		return []typing.Key{typing.BackspaceKey()}
	default:
		return nil
	}
}
