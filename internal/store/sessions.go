package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/verte-zerg/codetype/internal/model"
)

type sessionRow struct {
	ID             int64  `db:"id"`
	RepositoryID   int64  `db:"repository_id"`
	FileItemID     int64  `db:"file_item_id"`
	Path           string `db:"path"`
	EndedAt        string `db:"ended_at"`
	Correct        int    `db:"correct"`
	Typos          int    `db:"typos"`
	ElapsedSeconds int    `db:"elapsed_seconds"`
}

// ListSessions returns completed file sessions filtered by stats config,
// oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.RepositoryID != 0 {
		clauses = append(clauses, "repository_id = ?")
		args = append(args, cfg.RepositoryID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, formatTime(*cfg.Since))
	}
	query := fmt.Sprintf(`SELECT id, repository_id, file_item_id, path, ended_at, correct, typos, elapsed_seconds
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	sessions := make([]model.SessionRecord, 0, len(rows))
	for _, row := range rows {
		endedAt, err := parseTime(row.EndedAt)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, model.SessionRecord{
			ID:             row.ID,
			RepositoryID:   row.RepositoryID,
			FileItemID:     row.FileItemID,
			Path:           row.Path,
			EndedAt:        endedAt,
			Correct:        row.Correct,
			Typos:          row.Typos,
			ElapsedSeconds: row.ElapsedSeconds,
		})
	}
	return sessions, nil
}
