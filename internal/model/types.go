// Package model defines shared data structures.
package model

import "time"

// Config defines practice settings.
type Config struct {
	Repository   string
	Path         string
	ContentWidth float64
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	RepositoryID int64
	Since        *time.Time
	Last         int
	CurveWindow  int
}

// FileType distinguishes files from directories in a repository tree.
type FileType string

// File item types.
const (
	FileTypeFile FileType = "file"
	FileTypeDir  FileType = "dir"
)

// FileStatus is the typing status of a file item.
type FileStatus string

// File statuses.
const (
	StatusUntyped     FileStatus = "untyped"
	StatusTyping      FileStatus = "typing"
	StatusTyped       FileStatus = "typed"
	StatusUnsupported FileStatus = "unsupported"
)

// Done reports whether the status counts toward repository progress.
func (s FileStatus) Done() bool {
	return s == StatusTyped || s == StatusUnsupported
}

// Repository is an imported code repository.
type Repository struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	CommitHash  string      `json:"commitHash"`
	LastTypedAt *time.Time  `json:"lastTypedAt,omitempty"`
	Progress    float64     `json:"progress"`
	Extensions  []Extension `json:"extensions,omitempty"`
	FileItems   []FileItem  `json:"fileItems,omitempty"`
}

// Extension is a file extension discovered in a repository.
type Extension struct {
	Name      string `json:"name"`
	FileCount int    `json:"fileCount"`
	IsActive  bool   `json:"isActive"`
}

// FileItem is a file or directory node of a repository tree.
type FileItem struct {
	ID             int64           `json:"id"`
	RepositoryID   int64           `json:"repositoryId"`
	ParentID       *int64          `json:"parentId,omitempty"`
	Name           string          `json:"name"`
	Path           string          `json:"path"`
	Type           FileType        `json:"type"`
	Status         FileStatus      `json:"status"`
	Content        *string         `json:"content,omitempty"`
	TypingProgress *TypingProgress `json:"typingProgress,omitempty"`
	FileItems      []FileItem      `json:"fileItems"`
}

// IsFile reports whether the item is a regular file.
func (f FileItem) IsFile() bool {
	return f.Type == FileTypeFile
}

// Typo records a position where the typed character differs from the target.
type Typo struct {
	Row       int    `json:"row"`
	Column    int    `json:"column"`
	Character string `json:"character"`
}

// TypingProgress is a snapshot taken at a pause or completion boundary.
type TypingProgress struct {
	Row                   int      `json:"row"`
	Column                int      `json:"column"`
	ElapsedSeconds        int      `json:"elapsedSeconds"`
	TotalCorrectTypeCount int      `json:"totalCorrectTypeCount"`
	TotalTypoCount        int      `json:"totalTypoCount"`
	Typos                 []Typo   `json:"typos"`
	Accuracy              *float64 `json:"accuracy,omitempty"`
	WPM                   *float64 `json:"wpm,omitempty"`
}

// SaveRequest is the payload sent when pausing or completing a file.
type SaveRequest struct {
	Status         FileStatus     `json:"status"`
	TypingProgress TypingProgress `json:"typingProgress"`
}

// SaveResult carries the state returned by a save. A pause returns the
// updated file; a completion returns the whole repository.
type SaveResult struct {
	File       *FileItem   `json:"file,omitempty"`
	Repository *Repository `json:"repository,omitempty"`
}

// SessionRecord captures a completed file run for history reporting.
type SessionRecord struct {
	ID             int64
	RepositoryID   int64
	FileItemID     int64
	Path           string
	EndedAt        time.Time
	Correct        int
	Typos          int
	ElapsedSeconds int
}

// FileAggregate summarizes the completed sessions of one file.
type FileAggregate struct {
	RepositoryID   int64
	FileItemID     int64
	Path           string
	Sessions       int
	Correct        int
	Typos          int
	ElapsedSeconds int
	BestWPM        float64
	LastEndedAt    time.Time
}
