// Package logging provides a TUI-safe file logger. The terminal belongs to
// the Bubble Tea program, so log output goes to a file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	mu     sync.Mutex
	file   *os.File
	logger = log.New(io.Discard, "", log.LstdFlags)
)

// Init routes log output to path, creating its directory. Calling Init again
// switches to the new file.
func Init(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "codetype")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = f
	logger.SetOutput(f)
	logger.SetFlags(log.LstdFlags | log.Lshortfile)
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	write("INFO", format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	write("ERROR", format, args...)
}

// Debug logs a debug message.
func Debug(format string, args ...any) {
	write("DEBUG", format, args...)
}

func write(level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	_ = logger.Output(3, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}

// Close closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(io.Discard)
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}
