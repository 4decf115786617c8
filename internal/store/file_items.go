package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/typing"
)

// typoBatchSize keeps bulk typo inserts under the SQLite variable limit.
const typoBatchSize = 1000

type fileItemRow struct {
	ID           int64          `db:"id"`
	RepositoryID int64          `db:"repository_id"`
	ParentID     sql.NullInt64  `db:"parent_id"`
	Name         string         `db:"name"`
	Path         string         `db:"path"`
	Type         string         `db:"type"`
	Status       string         `db:"status"`
	Content      sql.NullString `db:"content"`
}

func (r fileItemRow) toModel() model.FileItem {
	item := model.FileItem{
		ID:           r.ID,
		RepositoryID: r.RepositoryID,
		Name:         r.Name,
		Path:         r.Path,
		Type:         model.FileType(r.Type),
		Status:       model.FileStatus(r.Status),
		FileItems:    []model.FileItem{},
	}
	if r.ParentID.Valid {
		parentID := r.ParentID.Int64
		item.ParentID = &parentID
	}
	if r.Content.Valid {
		content := r.Content.String
		item.Content = &content
	}
	return item
}

type progressRow struct {
	ID                    int64  `db:"id"`
	FileItemID            int64  `db:"file_item_id"`
	Row                   int    `db:"row_index"`
	Column                int    `db:"column_index"`
	ElapsedSeconds        int    `db:"elapsed_seconds"`
	TotalCorrectTypeCount int    `db:"total_correct_type_count"`
	TotalTypoCount        int    `db:"total_typo_count"`
	UpdatedAt             string `db:"updated_at"`
}

type typoRow struct {
	TypingProgressID int64  `db:"typing_progress_id"`
	Row              int    `db:"row_index"`
	Column           int    `db:"column_index"`
	Character        string `db:"character"`
}

const (
	selectFileItemMeta = `SELECT id, repository_id, parent_id, name, path, type, status FROM file_items`
	selectFileItem     = `SELECT id, repository_id, parent_id, name, path, type, status, content FROM file_items`
)

func insertFileItems(ctx context.Context, tx *sqlx.Tx, repositoryID int64, parentID *int64, items []model.FileItem) error {
	for _, item := range items {
		row := fileItemRow{
			RepositoryID: repositoryID,
			Name:         item.Name,
			Path:         item.Path,
			Type:         string(item.Type),
			Status:       string(item.Status),
		}
		if row.Status == "" {
			row.Status = string(model.StatusUntyped)
		}
		if parentID != nil {
			row.ParentID = sql.NullInt64{Int64: *parentID, Valid: true}
		}
		if item.Content != nil {
			row.Content = sql.NullString{String: *item.Content, Valid: true}
		}
		res, err := tx.NamedExecContext(ctx,
			`INSERT INTO file_items (repository_id, parent_id, name, path, type, status, content)
			 VALUES (:repository_id, :parent_id, :name, :path, :type, :status, :content)`, row)
		if err != nil {
			return fmt.Errorf("failed to insert file item %s: %w", item.Path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if len(item.FileItems) > 0 {
			if err := insertFileItems(ctx, tx, repositoryID, &id, item.FileItems); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildTree(rows []fileItemRow) []model.FileItem {
	children := map[int64][]fileItemRow{}
	var roots []fileItemRow
	for _, row := range rows {
		if row.ParentID.Valid {
			children[row.ParentID.Int64] = append(children[row.ParentID.Int64], row)
			continue
		}
		roots = append(roots, row)
	}
	var build func([]fileItemRow) []model.FileItem
	build = func(level []fileItemRow) []model.FileItem {
		items := make([]model.FileItem, 0, len(level))
		for _, row := range level {
			item := row.toModel()
			item.FileItems = build(children[row.ID])
			items = append(items, item)
		}
		return items
	}
	return model.SortFileItems(build(roots))
}

// GetFileItem returns a file item of a repository with its content, typing
// progress and direct children. Accuracy and WPM are derived from the stored
// counters.
func (s *Store) GetFileItem(ctx context.Context, repositoryID, fileID int64) (model.FileItem, error) {
	var row fileItemRow
	if err := s.db.GetContext(ctx, &row, selectFileItem+` WHERE id = ? AND repository_id = ?`, fileID, repositoryID); err != nil {
		return model.FileItem{}, notFound(err, "file item", fileID)
	}
	item := row.toModel()

	progress, err := s.typingProgress(ctx, fileID)
	if err != nil {
		return model.FileItem{}, err
	}
	item.TypingProgress = progress

	var children []fileItemRow
	if err := s.db.SelectContext(ctx, &children, selectFileItemMeta+` WHERE parent_id = ? ORDER BY id`, fileID); err != nil {
		return model.FileItem{}, err
	}
	for _, child := range children {
		item.FileItems = append(item.FileItems, child.toModel())
	}
	item.FileItems = model.SortFileItems(item.FileItems)
	return item, nil
}

func (s *Store) typingProgress(ctx context.Context, fileID int64) (*model.TypingProgress, error) {
	var rows []progressRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, file_item_id, row_index, column_index, elapsed_seconds, total_correct_type_count, total_typo_count, updated_at
		 FROM typing_progresses WHERE file_item_id = ?`, fileID); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]

	var typos []typoRow
	if err := s.db.SelectContext(ctx, &typos,
		`SELECT typing_progress_id, row_index, column_index, character FROM typos
		 WHERE typing_progress_id = ? ORDER BY id`, row.ID); err != nil {
		return nil, err
	}

	accuracy := typing.Accuracy(row.TotalCorrectTypeCount, row.TotalTypoCount)
	wpm := typing.WPM(row.TotalCorrectTypeCount, row.ElapsedSeconds)
	progress := &model.TypingProgress{
		Row:                   row.Row,
		Column:                row.Column,
		ElapsedSeconds:        row.ElapsedSeconds,
		TotalCorrectTypeCount: row.TotalCorrectTypeCount,
		TotalTypoCount:        row.TotalTypoCount,
		Typos:                 make([]model.Typo, 0, len(typos)),
		Accuracy:              &accuracy,
		WPM:                   &wpm,
	}
	for _, t := range typos {
		progress.Typos = append(progress.Typos, model.Typo{Row: t.Row, Column: t.Column, Character: t.Character})
	}
	return progress, nil
}

// SetFileContent stores the decoded content of a file. Unsupported files are
// marked so, and a parent whose children are all done becomes typed.
func (s *Store) SetFileContent(ctx context.Context, repositoryID, fileID int64, content string, unsupported bool) (model.FileItem, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row fileItemRow
		if err := tx.GetContext(ctx, &row, selectFileItemMeta+` WHERE id = ? AND repository_id = ?`, fileID, repositoryID); err != nil {
			return notFound(err, "file item", fileID)
		}
		status := row.Status
		if unsupported {
			status = string(model.StatusUnsupported)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE file_items SET content = ?, status = ? WHERE id = ?`, content, status, fileID); err != nil {
			return err
		}
		return propagateParentStatus(ctx, tx, row.ParentID)
	})
	if err != nil {
		return model.FileItem{}, fmt.Errorf("failed to store file content: %w", err)
	}
	return s.GetFileItem(ctx, repositoryID, fileID)
}

// SaveTypingProgress persists a pause (status typing) or a completion
// (status typed). The previous typo ledger of the file is replaced. A pause
// returns the updated file; a completion also propagates the typed status to
// parent directories, records a history session and returns the repository.
func (s *Store) SaveTypingProgress(ctx context.Context, repositoryID, fileID int64, req model.SaveRequest) (model.SaveResult, error) {
	if req.Status != model.StatusTyping && req.Status != model.StatusTyped {
		return model.SaveResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	if err := validateProgress(req.TypingProgress); err != nil {
		return model.SaveResult{}, err
	}

	p := req.TypingProgress
	now := formatTime(s.now())
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row fileItemRow
		if err := tx.GetContext(ctx, &row, selectFileItemMeta+` WHERE id = ? AND repository_id = ?`, fileID, repositoryID); err != nil {
			return notFound(err, "file item", fileID)
		}
		if row.Type != string(model.FileTypeFile) {
			return &ValidationError{Field: "type", Message: "must be a file"}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE file_items SET status = ? WHERE id = ?`, req.Status, fileID); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO typing_progresses (file_item_id, row_index, column_index, elapsed_seconds, total_correct_type_count, total_typo_count, updated_at)
			 VALUES (:file_item_id, :row_index, :column_index, :elapsed_seconds, :total_correct_type_count, :total_typo_count, :updated_at)
			 ON CONFLICT(file_item_id) DO UPDATE SET
				row_index = excluded.row_index,
				column_index = excluded.column_index,
				elapsed_seconds = excluded.elapsed_seconds,
				total_correct_type_count = excluded.total_correct_type_count,
				total_typo_count = excluded.total_typo_count,
				updated_at = excluded.updated_at`,
			progressRow{
				FileItemID:            fileID,
				Row:                   p.Row,
				Column:                p.Column,
				ElapsedSeconds:        p.ElapsedSeconds,
				TotalCorrectTypeCount: p.TotalCorrectTypeCount,
				TotalTypoCount:        p.TotalTypoCount,
				UpdatedAt:             now,
			}); err != nil {
			return fmt.Errorf("failed to save typing progress: %w", err)
		}
		var progressID int64
		if err := tx.GetContext(ctx, &progressID, `SELECT id FROM typing_progresses WHERE file_item_id = ?`, fileID); err != nil {
			return err
		}
		if err := replaceTypos(ctx, tx, progressID, p.Typos); err != nil {
			return err
		}
		if err := s.touchRepository(ctx, tx, repositoryID); err != nil {
			return err
		}
		if req.Status != model.StatusTyped {
			return nil
		}
		if err := propagateParentStatus(ctx, tx, row.ParentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (repository_id, file_item_id, path, ended_at, correct, typos, elapsed_seconds)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			repositoryID, fileID, row.Path, now, p.TotalCorrectTypeCount, p.TotalTypoCount, p.ElapsedSeconds)
		return err
	})
	if err != nil {
		return model.SaveResult{}, err
	}

	if req.Status == model.StatusTyped {
		repo, err := s.GetRepository(ctx, repositoryID)
		if err != nil {
			return model.SaveResult{}, err
		}
		return model.SaveResult{Repository: &repo}, nil
	}
	file, err := s.GetFileItem(ctx, repositoryID, fileID)
	if err != nil {
		return model.SaveResult{}, err
	}
	return model.SaveResult{File: &file}, nil
}

func replaceTypos(ctx context.Context, tx *sqlx.Tx, progressID int64, typos []model.Typo) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM typos WHERE typing_progress_id = ?`, progressID); err != nil {
		return err
	}
	for start := 0; start < len(typos); start += typoBatchSize {
		end := min(start+typoBatchSize, len(typos))
		rows := make([]typoRow, 0, end-start)
		for _, t := range typos[start:end] {
			rows = append(rows, typoRow{TypingProgressID: progressID, Row: t.Row, Column: t.Column, Character: t.Character})
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO typos (typing_progress_id, row_index, column_index, character)
			 VALUES (:typing_progress_id, :row_index, :column_index, :character)`, rows); err != nil {
			return fmt.Errorf("failed to save typos: %w", err)
		}
	}
	return nil
}

// propagateParentStatus marks parent directories typed, walking upward while
// every child of the current parent is typed or unsupported.
func propagateParentStatus(ctx context.Context, tx *sqlx.Tx, parentID sql.NullInt64) error {
	for parentID.Valid {
		var pending int
		if err := tx.GetContext(ctx, &pending,
			`SELECT COUNT(*) FROM file_items WHERE parent_id = ? AND status NOT IN (?, ?)`,
			parentID.Int64, model.StatusTyped, model.StatusUnsupported); err != nil {
			return err
		}
		if pending > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE file_items SET status = ? WHERE id = ?`, model.StatusTyped, parentID.Int64); err != nil {
			return err
		}
		var next sql.NullInt64
		if err := tx.GetContext(ctx, &next, `SELECT parent_id FROM file_items WHERE id = ?`, parentID.Int64); err != nil {
			return err
		}
		parentID = next
	}
	return nil
}

func validateProgress(p model.TypingProgress) error {
	fields := []struct {
		name  string
		value int
	}{
		{"typing_progress.row", p.Row},
		{"typing_progress.column", p.Column},
		{"typing_progress.elapsed_seconds", p.ElapsedSeconds},
		{"typing_progress.total_correct_type_count", p.TotalCorrectTypeCount},
		{"typing_progress.total_typo_count", p.TotalTypoCount},
	}
	for _, f := range fields {
		if f.value < 0 {
			return &ValidationError{Field: f.name, Message: "must be greater than or equal to 0"}
		}
	}
	for _, t := range p.Typos {
		if t.Row < 0 || t.Column < 0 {
			return &ValidationError{Field: "typos.position", Message: "must be greater than or equal to 0"}
		}
		// A space is a valid typo character; only the empty string is blank.
		if t.Character == "" {
			return &ValidationError{Field: "typos.character", Message: "can't be blank"}
		}
	}
	return nil
}
