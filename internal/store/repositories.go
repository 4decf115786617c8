package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/verte-zerg/codetype/internal/model"
)

type repositoryRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	URL         string         `db:"url"`
	CommitHash  string         `db:"commit_hash"`
	LastTypedAt sql.NullString `db:"last_typed_at"`
	CreatedAt   string         `db:"created_at"`
}

func (r repositoryRow) toModel() (model.Repository, error) {
	repo := model.Repository{
		ID:         r.ID,
		Name:       r.Name,
		URL:        r.URL,
		CommitHash: r.CommitHash,
	}
	if r.LastTypedAt.Valid {
		parsed, err := parseTime(r.LastTypedAt.String)
		if err != nil {
			return model.Repository{}, fmt.Errorf("failed to parse last_typed_at: %w", err)
		}
		repo.LastTypedAt = &parsed
	}
	return repo, nil
}

type extensionRow struct {
	RepositoryID int64  `db:"repository_id"`
	Name         string `db:"name"`
	FileCount    int    `db:"file_count"`
	IsActive     bool   `db:"is_active"`
}

type progressCount struct {
	RepositoryID int64 `db:"repository_id"`
	Total        int   `db:"total"`
	Done         int   `db:"done"`
}

const selectRepository = `SELECT id, name, url, commit_hash, last_typed_at, created_at FROM repositories`

// CreateRepository stores a repository with its extensions and file tree.
// Every file item starts untyped unless it carries a status already.
func (s *Store) CreateRepository(ctx context.Context, repo model.Repository) (model.Repository, error) {
	switch {
	case repo.Name == "":
		return model.Repository{}, &ValidationError{Field: "name", Message: "can't be blank"}
	case repo.URL == "":
		return model.Repository{}, &ValidationError{Field: "url", Message: "can't be blank"}
	case repo.CommitHash == "":
		return model.Repository{}, &ValidationError{Field: "commit_hash", Message: "can't be blank"}
	}

	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO repositories (name, url, commit_hash, created_at) VALUES (?, ?, ?, ?)`,
			repo.Name, repo.URL, repo.CommitHash, formatTime(s.now()))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, ext := range repo.Extensions {
			row := extensionRow{RepositoryID: id, Name: ext.Name, FileCount: ext.FileCount, IsActive: ext.IsActive}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO extensions (repository_id, name, file_count, is_active)
				 VALUES (:repository_id, :name, :file_count, :is_active)`, row); err != nil {
				return fmt.Errorf("failed to insert extension %s: %w", ext.Name, err)
			}
		}
		return insertFileItems(ctx, tx, id, nil, repo.FileItems)
	})
	if err != nil {
		return model.Repository{}, fmt.Errorf("failed to create repository: %w", err)
	}
	return s.GetRepository(ctx, id)
}

// ListRepositories returns every repository with extensions and progress,
// most recently typed first. File trees are not loaded.
func (s *Store) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	var rows []repositoryRow
	if err := s.db.SelectContext(ctx, &rows,
		selectRepository+` ORDER BY last_typed_at IS NULL, last_typed_at DESC, id DESC`); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	extensions, err := s.listExtensions(ctx, ids)
	if err != nil {
		return nil, err
	}

	var counts []progressCount
	if err := s.db.SelectContext(ctx, &counts,
		`SELECT repository_id, COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0) AS done
		 FROM file_items
		 WHERE type = ?
		 GROUP BY repository_id`,
		model.StatusTyped, model.StatusUnsupported, model.FileTypeFile); err != nil {
		return nil, err
	}
	progress := map[int64]float64{}
	for _, c := range counts {
		progress[c.RepositoryID] = float64(c.Done) / float64(c.Total)
	}

	repos := make([]model.Repository, 0, len(rows))
	for _, row := range rows {
		repo, err := row.toModel()
		if err != nil {
			return nil, err
		}
		repo.Extensions = extensions[row.ID]
		repo.Progress = 1.0
		if p, ok := progress[row.ID]; ok {
			repo.Progress = p
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// GetRepository returns a repository with its extensions, sorted file tree
// and progress. File contents are not loaded.
func (s *Store) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	var row repositoryRow
	if err := s.db.GetContext(ctx, &row, selectRepository+` WHERE id = ?`, id); err != nil {
		return model.Repository{}, notFound(err, "repository", id)
	}
	repo, err := row.toModel()
	if err != nil {
		return model.Repository{}, err
	}
	extensions, err := s.listExtensions(ctx, []int64{id})
	if err != nil {
		return model.Repository{}, err
	}
	repo.Extensions = extensions[id]

	var items []fileItemRow
	if err := s.db.SelectContext(ctx, &items,
		selectFileItemMeta+` WHERE repository_id = ? ORDER BY id`, id); err != nil {
		return model.Repository{}, err
	}
	repo.FileItems = buildTree(items)
	repo.Progress = model.Progress(repo.FileItems)
	return repo, nil
}

// FindRepository resolves a repository by numeric ID or by name. When
// several repositories share a name the newest wins.
func (s *Store) FindRepository(ctx context.Context, ref string) (model.Repository, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		repo, err := s.GetRepository(ctx, id)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return repo, err
		}
	}
	var id int64
	if err := s.db.GetContext(ctx, &id,
		`SELECT id FROM repositories WHERE name = ? ORDER BY id DESC LIMIT 1`, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Repository{}, fmt.Errorf("repository %q: %w", ref, ErrNotFound)
		}
		return model.Repository{}, err
	}
	return s.GetRepository(ctx, id)
}

// DeleteRepository removes a repository and everything that belongs to it.
func (s *Store) DeleteRepository(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int64
		if err := tx.GetContext(ctx, &exists, `SELECT id FROM repositories WHERE id = ?`, id); err != nil {
			return notFound(err, "repository", id)
		}
		stmts := []string{
			`DELETE FROM typos WHERE typing_progress_id IN (
				SELECT tp.id FROM typing_progresses tp
				JOIN file_items fi ON fi.id = tp.file_item_id
				WHERE fi.repository_id = ?)`,
			`DELETE FROM typing_progresses WHERE file_item_id IN (
				SELECT id FROM file_items WHERE repository_id = ?)`,
			`DELETE FROM sessions WHERE repository_id = ?`,
			`DELETE FROM file_items WHERE repository_id = ?`,
			`DELETE FROM extensions WHERE repository_id = ?`,
			`DELETE FROM repositories WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete repository %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Store) listExtensions(ctx context.Context, repositoryIDs []int64) (map[int64][]model.Extension, error) {
	query, args, err := sqlx.In(
		`SELECT repository_id, name, file_count, is_active FROM extensions
		 WHERE repository_id IN (?)
		 ORDER BY file_count DESC, name ASC`, repositoryIDs)
	if err != nil {
		return nil, err
	}
	var rows []extensionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	result := map[int64][]model.Extension{}
	for _, row := range rows {
		result[row.RepositoryID] = append(result[row.RepositoryID], model.Extension{
			Name:      row.Name,
			FileCount: row.FileCount,
			IsActive:  row.IsActive,
		})
	}
	return result, nil
}

func (s *Store) touchRepository(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE repositories SET last_typed_at = ? WHERE id = ?`, formatTime(s.now()), id)
	return err
}
