package stats

import (
	"sort"

	"github.com/verte-zerg/codetype/internal/model"
)

// AggregateFiles groups sessions by file. Counts and time are summed; the
// best WPM is the fastest single run.
func AggregateFiles(sessions []model.SessionRecord) []model.FileAggregate {
	index := map[int64]int{}
	var out []model.FileAggregate
	for _, s := range sessions {
		i, ok := index[s.FileItemID]
		if !ok {
			i = len(out)
			index[s.FileItemID] = i
			out = append(out, model.FileAggregate{
				RepositoryID: s.RepositoryID,
				FileItemID:   s.FileItemID,
				Path:         s.Path,
			})
		}
		agg := &out[i]
		agg.Sessions++
		agg.Correct += s.Correct
		agg.Typos += s.Typos
		agg.ElapsedSeconds += s.ElapsedSeconds
		if wpm, _, _ := SessionMetrics(s.Correct, s.Typos, s.ElapsedSeconds); wpm > agg.BestWPM {
			agg.BestWPM = wpm
		}
		if s.EndedAt.After(agg.LastEndedAt) {
			agg.LastEndedAt = s.EndedAt
		}
	}
	return out
}

// WeakestFiles returns up to limit files ordered by lowest accuracy, then by
// most typos. Files typed without a single typo are never weak.
func WeakestFiles(files []model.FileAggregate, limit int) []model.FileAggregate {
	if limit <= 0 {
		return nil
	}
	type scored struct {
		file model.FileAggregate
		acc  float64
	}
	candidates := make([]scored, 0, len(files))
	for _, f := range files {
		if f.Typos == 0 {
			continue
		}
		_, _, acc := SessionMetrics(f.Correct, f.Typos, f.ElapsedSeconds)
		candidates = append(candidates, scored{file: f, acc: acc})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].acc != candidates[j].acc {
			return candidates[i].acc < candidates[j].acc
		}
		if candidates[i].file.Typos != candidates[j].file.Typos {
			return candidates[i].file.Typos > candidates[j].file.Typos
		}
		return candidates[i].file.Path < candidates[j].file.Path
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]model.FileAggregate, len(candidates))
	for i, c := range candidates {
		out[i] = c.file
	}
	return out
}
