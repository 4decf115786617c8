package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/typing"
)

var statusGlyphs = map[model.FileStatus]string{
	model.StatusUntyped:     "·",
	model.StatusTyping:      "◐",
	model.StatusTyped:       "✓",
	model.StatusUnsupported: "✗",
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.screen == screenTyping {
		return m.viewTyping()
	}
	return m.viewFiles()
}

func (m *Model) viewFiles() string {
	files := m.files()
	progress := model.Progress(m.session.Files())
	lines := []string{titleStyle.Render(fmt.Sprintf("%s · %.0f%% typed", m.repository.Name, progress*100))}
	if m.repoDone.Load() {
		lines = append(lines, m.banner())
	}

	listHeight := len(files)
	if m.height > 0 {
		listHeight = m.height - len(lines) - 2
	}
	start, end := visibleRange(len(files), m.cursor, listHeight)
	for i := start; i < end; i++ {
		file := files[i]
		line := fmt.Sprintf("%s %s", statusGlyphs[file.Status], file.Path)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if len(files) == 0 {
		lines = append(lines, footerStyle.Render("No files to type."))
	}

	status := ""
	switch {
	case m.loading:
		status = m.spinner.View() + " loading"
	case m.notice != "":
		status = errorStyle.Render(m.notice)
	}
	lines = append(lines, status, m.help.ShortHelpView(m.keys.filesHelp()))
	return strings.Join(lines, "\n")
}

// visibleRange returns the slice of a list of n rows to show so that cursor
// stays within height rows.
func visibleRange(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}

func (m *Model) viewTyping() string {
	snap := m.session.Snapshot()
	if len(snap.TargetLines) == 0 {
		return ""
	}
	title := m.renderTitle(snap)
	footer := m.renderFooter(snap)
	helpLine := m.help.ShortHelpView(m.keys.typingHelp(snap.State))
	if m.width == 0 || m.height == 0 {
		content, _, _ := renderText(snap, 0)
		return strings.Join([]string{title, content, footer, helpLine}, "\n")
	}
	body := lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Top, m.viewport.View())
	return strings.Join([]string{
		lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, title),
		body,
		lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer),
		lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, helpLine),
	}, "\n")
}

func (m *Model) renderTitle(snap typing.Snapshot) string {
	switch {
	case snap.ErrorMessage != "":
		return errorStyle.Render(snap.ErrorMessage)
	case m.notice != "":
		return errorStyle.Render(m.notice)
	case m.repoDone.Load() && snap.State == typing.StateCompleted:
		return m.banner()
	}
	path := ""
	if snap.File != nil {
		path = snap.File.Path
	}
	switch {
	case snap.File != nil && snap.File.Status == model.StatusUnsupported:
		return titleStyle.Render(path) + footerStyle.Render("  unsupported file, pick another one")
	case snap.State == typing.StateReady:
		return titleStyle.Render(path) + footerStyle.Render("  press enter to start")
	case snap.State == typing.StatePaused:
		return titleStyle.Render(path) + footerStyle.Render("  paused")
	case snap.State == typing.StateCompleted:
		return titleStyle.Render(path) + footerStyle.Render("  done")
	}
	return titleStyle.Render(path)
}

func (m *Model) renderFooter(snap typing.Snapshot) string {
	if len(snap.TargetLines) == 0 {
		return ""
	}
	progress := 0
	if snap.State == typing.StateCompleted {
		progress = 100
	} else if len(snap.TargetLines) > 0 {
		progress = int(float64(snap.CursorRow) / float64(len(snap.TargetLines)) * 100)
	}
	secs := snap.Stats.ElapsedSeconds
	segments := []string{
		fmt.Sprintf("Progress %d%%", progress),
		fmt.Sprintf("Accuracy %.1f%%", snap.Stats.Accuracy),
		fmt.Sprintf("WPM %.1f", snap.Stats.WPM),
		fmt.Sprintf("Time %d:%02d", secs/60, secs%60),
		fmt.Sprintf("Typos %d", snap.Stats.TotalTypoCount),
	}
	footer := footerStyle.Render(strings.Join(segments, "  "))
	if snap.Saving {
		footer = m.spinner.View() + " " + footer
	}
	return footer
}

func (m *Model) banner() string {
	return bannerStyle.Render(fmt.Sprintf("Congratulations! Every file in %s is typed.", m.repository.Name))
}
