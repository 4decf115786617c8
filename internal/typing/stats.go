package typing

import (
	"math"
	"time"

	"github.com/verte-zerg/codetype/internal/model"
)

// charsPerWord is the conventional word length used for WPM.
const charsPerWord = 5.0

// StatsSnapshot is a read-only view of the statistics.
type StatsSnapshot struct {
	Accuracy              float64
	WPM                   float64
	ElapsedSeconds        int
	TotalCorrectTypeCount int
	TotalTypoCount        int
}

// Stats accumulates keystroke counts and active typing time.
type Stats struct {
	now func() time.Time

	running     bool
	startedAt   time.Time
	accumulated time.Duration

	correct int
	typos   int

	// Metrics restored from a persisted snapshot, shown until the counts or
	// the clock move again.
	restored *StatsSnapshot
}

// NewStats returns zeroed statistics reading time from now.
func NewStats(now func() time.Time) *Stats {
	if now == nil {
		now = time.Now
	}
	return &Stats{now: now}
}

// Start starts the clock. Time restored from a snapshot is kept.
func (s *Stats) Start() {
	if s.running {
		return
	}
	s.running = true
	s.startedAt = s.now()
	s.restored = nil
}

// Pause freezes the clock.
func (s *Stats) Pause() {
	if !s.running {
		return
	}
	s.accumulated += s.now().Sub(s.startedAt)
	s.running = false
	s.startedAt = time.Time{}
}

// Resume continues a paused clock.
func (s *Stats) Resume() {
	s.Start()
}

// Complete stops the clock for good.
func (s *Stats) Complete() {
	s.Pause()
}

// Reset zeroes every counter and the clock.
func (s *Stats) Reset() {
	s.running = false
	s.startedAt = time.Time{}
	s.accumulated = 0
	s.correct = 0
	s.typos = 0
	s.restored = nil
}

// Record counts one classified keystroke.
func (s *Stats) Record(v Verdict) {
	switch v {
	case VerdictCorrect:
		s.correct++
	case VerdictTypo:
		s.typos++
	default:
		return
	}
	s.restored = nil
}

// Restore sets the counters and elapsed time from persisted progress. The
// clock is left stopped.
func (s *Stats) Restore(p model.TypingProgress) {
	s.Reset()
	s.accumulated = time.Duration(p.ElapsedSeconds) * time.Second
	s.correct = p.TotalCorrectTypeCount
	s.typos = p.TotalTypoCount
	snap := StatsSnapshot{
		Accuracy:              Accuracy(s.correct, s.typos),
		WPM:                   WPM(s.correct, p.ElapsedSeconds),
		ElapsedSeconds:        p.ElapsedSeconds,
		TotalCorrectTypeCount: s.correct,
		TotalTypoCount:        s.typos,
	}
	if p.Accuracy != nil {
		snap.Accuracy = *p.Accuracy
	}
	if p.WPM != nil {
		snap.WPM = *p.WPM
	}
	s.restored = &snap
}

// Running reports whether the clock is running.
func (s *Stats) Running() bool {
	return s.running
}

// Elapsed returns the accumulated active time.
func (s *Stats) Elapsed() time.Duration {
	if s.running {
		return s.accumulated + s.now().Sub(s.startedAt)
	}
	return s.accumulated
}

// ElapsedSeconds returns the active time in whole seconds.
func (s *Stats) ElapsedSeconds() int {
	return int(s.Elapsed() / time.Second)
}

// Snapshot returns the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	if s.restored != nil {
		return *s.restored
	}
	elapsed := s.ElapsedSeconds()
	return StatsSnapshot{
		Accuracy:              Accuracy(s.correct, s.typos),
		WPM:                   WPM(s.correct, elapsed),
		ElapsedSeconds:        elapsed,
		TotalCorrectTypeCount: s.correct,
		TotalTypoCount:        s.typos,
	}
}

// Accuracy returns the share of correct keystrokes as a percentage rounded to
// one decimal. No keystrokes at all is 100.
func Accuracy(correct, typos int) float64 {
	total := correct + typos
	if total == 0 {
		return 100.0
	}
	return round1(float64(correct) / float64(total) * 100)
}

// WPM returns words per minute from correct characters, rounded to one
// decimal. Zero elapsed time yields 0.
func WPM(correct, elapsedSeconds int) float64 {
	if elapsedSeconds <= 0 {
		return 0.0
	}
	minutes := float64(elapsedSeconds) / 60.0
	return round1(float64(correct) / charsPerWord / minutes)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
