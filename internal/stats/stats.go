// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/codetype/internal/model"
)

const sparkChars = " .:-=+*#%@"

// labelWidth is the column reserved for curve labels and their range suffix.
const labelWidth = 34

// SessionMetrics computes WPM, CPM, and accuracy for a completed file run.
// Accuracy is a fraction and stays 1 when nothing was typed.
func SessionMetrics(correct, typos, elapsedSeconds int) (wpm, cpm, accuracy float64) {
	accuracy = 1
	den := float64(correct + typos)
	if den > 0 {
		accuracy = float64(correct) / den
	}
	if elapsedSeconds <= 0 {
		return 0, 0, accuracy
	}
	minutes := float64(elapsedSeconds) / 60.0
	wpm = (float64(correct) / 5.0) / minutes
	cpm = float64(correct) / minutes
	return wpm, cpm, accuracy
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Downsample averages values into at most width buckets.
func Downsample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		lo := i * len(values) / width
		hi := (i + 1) * len(values) / width
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := bounds(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func bounds(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

// RenderSummary prints a summary of completed file sessions.
func RenderSummary(w io.Writer, sessions []model.SessionRecord) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No completed files yet.")
		return err
	}
	var totalWPM, totalAcc float64
	var totalSeconds, totalTypos int
	bestWPM := 0.0
	for _, s := range sessions {
		wpm, _, acc := SessionMetrics(s.Correct, s.Typos, s.ElapsedSeconds)
		totalWPM += wpm
		totalAcc += acc
		totalSeconds += s.ElapsedSeconds
		totalTypos += s.Typos
		if wpm > bestWPM {
			bestWPM = wpm
		}
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Files completed: %d", len(sessions)),
		fmt.Sprintf("Avg WPM: %.1f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.1f", bestWPM),
		fmt.Sprintf("Avg Accuracy: %.1f%%", (totalAcc/count)*100),
		fmt.Sprintf("Typos: %d", totalTypos),
		fmt.Sprintf("Time typing: %s", FormatSeconds(totalSeconds)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints learning curves for WPM and accuracy.
func RenderCurves(w io.Writer, sessions []model.SessionRecord, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0)
}

// RenderCurvesWithSize prints learning curves fitted to a total width.
// A width of zero draws one column per session.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionRecord, window, totalWidth int) error {
	if len(sessions) == 0 {
		return nil
	}
	wpms := make([]float64, len(sessions))
	accs := make([]float64, len(sessions))
	for i, s := range sessions {
		wpm, _, acc := SessionMetrics(s.Correct, s.Typos, s.ElapsedSeconds)
		wpms[i] = wpm
		accs[i] = acc * 100
	}
	wpms = MovingAverage(wpms, window)
	accs = MovingAverage(accs, window)

	width := 0
	if totalWidth > 0 {
		width = SparkWidthFor(totalWidth)
	}
	if _, err := fmt.Fprintln(w, "Learning Curves"); err != nil {
		return err
	}
	if err := renderCurve(w, "WPM", "%.1f", Downsample(wpms, width)); err != nil {
		return err
	}
	if err := renderCurve(w, "Accuracy", "%.1f%%", Downsample(accs, width)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func renderCurve(w io.Writer, name, format string, values []float64) error {
	minVal, maxVal := bounds(values)
	label := fmt.Sprintf("%-9s"+format+" .. "+format, name, minVal, maxVal)
	_, err := fmt.Fprintf(w, "%s  %s\n", padCell(label, labelWidth, false), Sparkline(values))
	return err
}

// SparkWidthFor returns the sparkline width that fits the terminal width.
func SparkWidthFor(totalWidth int) int {
	width := totalWidth - labelWidth - 2
	if width < 10 {
		return 10
	}
	return width
}

// RenderFileTable prints per-file aggregates, most recently completed first.
func RenderFileTable(w io.Writer, files []model.FileAggregate) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(w, "No file stats found.")
		return err
	}
	sorted := make([]model.FileAggregate, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].LastEndedAt.Equal(sorted[j].LastEndedAt) {
			return sorted[i].LastEndedAt.After(sorted[j].LastEndedAt)
		}
		return sorted[i].Path < sorted[j].Path
	})

	if _, err := fmt.Fprintln(w, "Per-File"); err != nil {
		return err
	}
	headers := []string{"File", "Runs", "Best WPM", "Avg WPM", "Accuracy", "Typos", "Time"}
	rows := make([][]string, 0, len(sorted))
	for _, f := range sorted {
		wpm, _, acc := SessionMetrics(f.Correct, f.Typos, f.ElapsedSeconds)
		rows = append(rows, []string{
			f.Path,
			fmt.Sprintf("%d", f.Sessions),
			fmt.Sprintf("%.1f", f.BestWPM),
			fmt.Sprintf("%.1f", wpm),
			fmt.Sprintf("%.1f%%", acc*100),
			fmt.Sprintf("%d", f.Typos),
			FormatSeconds(f.ElapsedSeconds),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderWeakFiles prints the files with the lowest accuracy.
func RenderWeakFiles(w io.Writer, files []model.FileAggregate, limit int) error {
	weak := WeakestFiles(files, limit)
	if len(weak) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Needs Practice"); err != nil {
		return err
	}
	for i, f := range weak {
		_, _, acc := SessionMetrics(f.Correct, f.Typos, f.ElapsedSeconds)
		if _, err := fmt.Fprintf(w, "%d. %s (%.1f%%, %d typos)\n", i+1, f.Path, acc*100, f.Typos); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// FormatSeconds renders a duration in seconds as 1h02m03s.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return (time.Duration(seconds) * time.Second).String()
}
