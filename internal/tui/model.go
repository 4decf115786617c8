// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/codetype/internal/logging"
	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/typing"
)

const defaultContentWidth = 0.70

type screen int

const (
	screenFiles screen = iota
	screenTyping
)

// afterPause is what happens once a pause save succeeds.
type afterPause int

const (
	stayAfterPause afterPause = iota
	filesAfterPause
	quitAfterPause
)

type loadedMsg struct {
	file model.FileItem
	err  error
}

type pausedMsg struct {
	err  error
	then afterPause
}

type completedMsg struct {
	err error
}

// Model implements the Bubble Tea typing UI.
type Model struct {
	config     model.Config
	repository model.Repository
	session    *typing.Session
	keys       keyMap
	help       help.Model
	spinner    spinner.Model
	viewport   viewport.Model

	width  int
	height int

	screen   screen
	cursor   int
	loading  bool
	notice   string
	repoDone atomic.Bool
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = pendingStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle       = lipgloss.NewStyle().Bold(true)
	errorStyle       = incorrectStyle.Bold(true)
	bannerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// NewModel constructs a typing TUI for repo. Saves and fetches go through
// gateway; opts are passed on to the typing session.
func NewModel(cfg model.Config, repo model.Repository, gateway typing.Gateway, opts ...typing.Option) *Model {
	m := &Model{
		config:     cfg,
		repository: repo,
		keys:       newKeyMap(),
		help:       help.New(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		viewport:   viewport.New(0, 0),
	}
	opts = append([]typing.Option{
		typing.WithFiles(model.SortFileItems(repo.FileItems)),
		typing.WithRepositoryCompleted(func() { m.repoDone.Store(true) }),
	}, opts...)
	m.session = typing.NewSession(gateway, opts...)
	if repo.Progress >= 1.0 && len(model.FlattenFiles(repo.FileItems)) > 0 {
		m.repoDone.Store(true)
	}
	return m
}

// Init implements tea.Model. A configured path is opened right away.
func (m *Model) Init() tea.Cmd {
	if m.config.Path == "" {
		return nil
	}
	for i, file := range m.files() {
		if file.Path == m.config.Path {
			m.cursor = i
			return m.load(file.ID)
		}
	}
	m.notice = "file not found: " + m.config.Path
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.syncViewport()
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			if !errors.Is(msg.err, typing.ErrStaleLoad) {
				m.notice = msg.err.Error()
			}
			return m, nil
		}
		m.notice = ""
		m.screen = screenTyping
		m.viewport.GotoTop()
		m.syncViewport()
		return m, nil
	case pausedMsg:
		m.syncViewport()
		if msg.err != nil {
			if msg.then == quitAfterPause {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.then {
		case filesAfterPause:
			m.screen = screenFiles
		case quitAfterPause:
			return m, tea.Quit
		}
		return m, nil
	case completedMsg:
		if msg.err != nil && m.session.ErrorMessage() == "" {
			m.notice = msg.err.Error()
		}
		m.syncViewport()
		return m, nil
	case tea.KeyMsg:
		if m.screen == screenTyping {
			return m.updateTyping(msg)
		}
		return m.updateFiles(msg)
	default:
		return m, nil
	}
}

func (m *Model) updateFiles(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	files := m.files()
	switch {
	case key.Matches(msg, m.keys.Quit), msg.String() == "q":
		return m, tea.Quit
	case m.loading:
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(files)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Next):
		next, ok := model.FirstUntypedFile(m.session.Files())
		if !ok {
			m.notice = "every file is typed"
			return m, nil
		}
		for i, file := range files {
			if file.ID == next.ID {
				m.cursor = i
			}
		}
	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(files) {
			return m, m.load(files[m.cursor].ID)
		}
	}
	return m, nil
}

func (m *Model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.session.State()
	switch {
	case key.Matches(msg, m.keys.Quit):
		if state == typing.StateTyping && !m.busy() {
			return m, m.pause(quitAfterPause)
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		if state == typing.StateTyping && !m.busy() {
			return m, m.pause(filesAfterPause)
		}
		if !m.busy() {
			m.screen = screenFiles
		}
		return m, nil
	case key.Matches(msg, m.keys.Pause):
		switch state {
		case typing.StateTyping:
			return m, m.pause(stayAfterPause)
		case typing.StatePaused:
			m.report(m.session.Resume())
		}
		return m, nil
	case key.Matches(msg, m.keys.Reset):
		m.session.Reset()
		m.syncViewport()
		return m, nil
	case key.Matches(msg, m.keys.Save):
		if state == typing.StateTyping && !m.busy() && !m.session.Snapshot().CompletionDue {
			return m, m.complete()
		}
		return m, nil
	}

	switch state {
	case typing.StateReady:
		if key.Matches(msg, m.keys.Start) && !m.unsupported() {
			m.report(m.session.Start())
		}
		return m, nil
	case typing.StateTyping:
		for _, k := range typingKeys(msg) {
			if res := m.session.Keystroke(k); res.CompletionDue {
				m.syncViewport()
				return m, m.complete()
			}
		}
		m.syncViewport()
	}
	return m, nil
}

func (m *Model) load(fileID int64) tea.Cmd {
	m.loading = true
	m.notice = ""
	session := m.session
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		file, err := session.Load(context.Background(), fileID)
		return loadedMsg{file: file, err: err}
	})
}

func (m *Model) pause(then afterPause) tea.Cmd {
	session := m.session
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		err := session.Pause(context.Background())
		if err != nil {
			logging.Error("pause: %v", err)
		}
		return pausedMsg{err: err, then: then}
	})
}

func (m *Model) complete() tea.Cmd {
	session := m.session
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		err := session.Complete(context.Background())
		if err != nil {
			logging.Error("complete: %v", err)
		}
		return completedMsg{err: err}
	})
}

func (m *Model) report(err error) {
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

func (m *Model) busy() bool {
	return m.loading || m.session.Snapshot().Saving
}

func (m *Model) unsupported() bool {
	snap := m.session.Snapshot()
	return snap.File != nil && snap.File.Status == model.StatusUnsupported
}

func (m *Model) files() []model.FileItem {
	return model.FlattenFiles(m.session.Files())
}

func (m *Model) contentWidth() int {
	ratio := m.config.ContentWidth
	if ratio <= 0 || ratio > 1 {
		ratio = defaultContentWidth
	}
	width := int(float64(m.width) * ratio)
	if width < 1 {
		width = 1
	}
	return width
}

// syncViewport re-renders the text and scrolls so the cursor row is visible.
func (m *Model) syncViewport() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.viewport.Width = m.contentWidth()
	m.viewport.Height = m.height - 3
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	content, first, last := renderText(m.session.Snapshot(), m.viewport.Width)
	m.viewport.SetContent(content)
	switch {
	case first < m.viewport.YOffset:
		m.viewport.SetYOffset(first)
	case last >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(last - m.viewport.Height + 1)
	}
}
