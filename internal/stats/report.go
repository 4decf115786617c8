package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/codetype/internal/model"
)

// weakLimit caps the "Needs Practice" list.
const weakLimit = 5

// SessionSource lists completed file sessions.
type SessionSource interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.SessionRecord
	Files    []model.FileAggregate
	Window   int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src SessionSource, cfg model.StatsConfig) (Report, error) {
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return Report{
		Sessions: sessions,
		Files:    AggregateFiles(sessions),
		Window:   cfg.CurveWindow,
	}, nil
}

// Render writes the full report. A width of zero leaves curves unscaled.
func (r Report) Render(w io.Writer, width int) error {
	if err := RenderSummary(w, r.Sessions); err != nil {
		return err
	}
	if len(r.Sessions) == 0 {
		return nil
	}
	if err := RenderCurvesWithSize(w, r.Sessions, r.Window, width); err != nil {
		return err
	}
	if err := RenderFileTable(w, r.Files); err != nil {
		return err
	}
	return RenderWeakFiles(w, r.Files, weakLimit)
}
