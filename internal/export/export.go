// Package export writes typing history to spreadsheets.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/stats"
	"github.com/verte-zerg/codetype/internal/typing"
)

// Sheet names.
const (
	SessionsSheet = "Sessions"
	FilesSheet    = "Files"
	SummarySheet  = "Summary"
)

var (
	sessionHeaders = []any{"Repository", "File", "Ended At", "Correct", "Typos", "Seconds", "Accuracy", "WPM"}
	fileHeaders    = []any{"Repository", "File", "Runs", "Correct", "Typos", "Seconds", "Best WPM", "Last Completed"}
	summaryHeaders = []any{"Repository", "Source", "Commit", "Progress", "Last Typed", "Files Completed", "Time Typing"}
)

// WriteWorkbook saves the report as an .xlsx file at path. Repositories
// label the rows and fill the summary sheet.
func WriteWorkbook(path string, repos []model.Repository, report stats.Report) error {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()

	names := make(map[int64]string, len(repos))
	for _, repo := range repos {
		names[repo.ID] = repo.Name
	}

	f.SetSheetName("Sheet1", SessionsSheet)
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	rows := make([][]any, 0, len(report.Sessions))
	for _, s := range report.Sessions {
		rows = append(rows, []any{
			names[s.RepositoryID],
			s.Path,
			s.EndedAt.Local().Format(time.DateTime),
			s.Correct,
			s.Typos,
			s.ElapsedSeconds,
			typing.Accuracy(s.Correct, s.Typos),
			typing.WPM(s.Correct, s.ElapsedSeconds),
		})
	}
	if err := writeSheet(f, SessionsSheet, sessionHeaders, rows, bold); err != nil {
		return err
	}

	rows = rows[:0]
	for _, agg := range report.Files {
		rows = append(rows, []any{
			names[agg.RepositoryID],
			agg.Path,
			agg.Sessions,
			agg.Correct,
			agg.Typos,
			agg.ElapsedSeconds,
			roundWPM(agg.BestWPM),
			agg.LastEndedAt.Local().Format(time.DateTime),
		})
	}
	if err := writeNewSheet(f, FilesSheet, fileHeaders, rows, bold); err != nil {
		return err
	}

	completed := map[int64]int{}
	seconds := map[int64]int{}
	for _, s := range report.Sessions {
		completed[s.RepositoryID]++
		seconds[s.RepositoryID] += s.ElapsedSeconds
	}
	rows = rows[:0]
	for _, repo := range repos {
		lastTyped := ""
		if repo.LastTypedAt != nil {
			lastTyped = repo.LastTypedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []any{
			repo.Name,
			repo.URL,
			repo.CommitHash,
			fmt.Sprintf("%.0f%%", repo.Progress*100),
			lastTyped,
			completed[repo.ID],
			stats.FormatSeconds(seconds[repo.ID]),
		})
	}
	if err := writeNewSheet(f, SummarySheet, summaryHeaders, rows, bold); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeNewSheet(f *excelize.File, sheet string, headers []any, rows [][]any, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return writeSheet(f, sheet, headers, rows, headerStyle)
}

func writeSheet(f *excelize.File, sheet string, headers []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	return nil
}

func roundWPM(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
