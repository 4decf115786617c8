package typing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/codetype/internal/model"
)

// State is the state of a typing session.
type State string

// Session states.
const (
	StateReady     State = "ready"
	StateTyping    State = "typing"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

var (
	// ErrNoFile is returned when an action needs a loaded file.
	ErrNoFile = errors.New("no file loaded")
	// ErrInvalidTransition is returned when an action is not allowed in the
	// current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSaveInFlight is returned while a pause or completion save is
	// outstanding.
	ErrSaveInFlight = errors.New("save already in progress")
	// ErrNotComplete is returned when completing a file that is not fully
	// typed.
	ErrNotComplete = errors.New("file is not fully typed")
	// ErrStaleLoad is returned when a fetch resolves after another file was
	// selected.
	ErrStaleLoad = errors.New("stale file response")
)

// Gateway is the persistence boundary used by a session.
type Gateway interface {
	FetchFile(ctx context.Context, fileID int64) (model.FileItem, error)
	SaveProgress(ctx context.Context, fileID int64, req model.SaveRequest) (model.SaveResult, error)
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source of the statistics clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithFiles seeds the file collection the session keeps up to date.
func WithFiles(files []model.FileItem) Option {
	return func(s *Session) {
		s.files = append([]model.FileItem(nil), files...)
	}
}

// WithRepositoryCompleted registers a callback fired when a completion save
// reports the whole repository as typed.
func WithRepositoryCompleted(fn func()) Option {
	return func(s *Session) {
		s.onRepositoryCompleted = fn
	}
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State         State
	FileID        int64
	File          *model.FileItem
	TargetLines   []string
	TypedLines    []string
	CursorColumns []int
	CursorRow     int
	Stats         StatsSnapshot
	Saving        bool
	CompletionDue bool
	ErrorMessage  string
}

// KeystrokeResult reports what a keystroke did.
type KeystrokeResult struct {
	Handled bool
	Verdict Verdict
	// CompletionDue is set when the keystroke finished the file. The caller
	// persists the completion with Complete.
	CompletionDue bool
}

// Session owns the typing state of the selected file. It is safe for use
// from multiple goroutines; gateway calls run without holding the lock.
type Session struct {
	mu sync.Mutex

	gateway               Gateway
	now                   func() time.Time
	onRepositoryCompleted func()

	state         State
	token         string
	fileID        int64
	file          *model.FileItem
	text          TextState
	buf           Buffer
	stats         *Stats
	saving        bool
	completionDue bool
	files         []model.FileItem
	errMsg        string
}

// NewSession returns a session in the ready state with no file loaded.
func NewSession(gateway Gateway, opts ...Option) *Session {
	s := &Session{
		gateway: gateway,
		now:     time.Now,
		state:   StateReady,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = NewStats(s.now)
	s.token = uuid.NewString()
	return s
}

// Load selects fileID, fetches it and seeds the buffer from its saved
// progress. When another Load or a Reset happens before the fetch resolves,
// the response is dropped and ErrStaleLoad is returned.
func (s *Session) Load(ctx context.Context, fileID int64) (model.FileItem, error) {
	s.mu.Lock()
	token := uuid.NewString()
	s.token = token
	s.fileID = fileID
	s.file = nil
	s.text = TextState{}
	s.buf = Buffer{}
	s.stats.Reset()
	s.state = StateReady
	s.saving = false
	s.completionDue = false
	s.errMsg = ""
	s.mu.Unlock()

	file, err := s.gateway.FetchFile(ctx, fileID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return model.FileItem{}, ErrStaleLoad
	}
	if err != nil {
		err = fmt.Errorf("failed to load file: %w", err)
		s.errMsg = err.Error()
		return model.FileItem{}, err
	}

	content := ""
	if file.Content != nil {
		content = *file.Content
	}
	s.text = InitializeTextState(content)
	if file.TypingProgress == nil {
		s.buf = NewBuffer(s.text)
		s.stats.Reset()
	} else {
		s.buf = Restore(s.text, *file.TypingProgress)
		s.stats.Restore(*file.TypingProgress)
	}
	if file.Status == model.StatusTyped && s.buf.IsComplete() {
		s.state = StateCompleted
	}
	loaded := file
	s.file = &loaded
	return file, nil
}

// Start begins typing a loaded file.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrNoFile
	}
	if s.state != StateReady {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state)
	}
	s.stats.Start()
	s.state = StateTyping
	return nil
}

// Keystroke classifies one key. Keys are discarded unless the session is
// typing with no save outstanding.
func (s *Session) Keystroke(key Key) KeystrokeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTyping || s.saving || s.completionDue || s.buf.Empty() {
		return KeystrokeResult{}
	}
	next, verdict, handled := Classify(s.buf, key)
	if !handled {
		return KeystrokeResult{}
	}
	s.buf = next
	s.stats.Record(verdict)
	result := KeystrokeResult{Handled: true, Verdict: verdict}
	if s.buf.IsComplete() {
		s.completionDue = true
		result.CompletionDue = true
	}
	return result
}

// Pause freezes the clock and saves progress. On failure the session keeps
// typing with its buffer and statistics intact.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return ErrNoFile
	}
	if s.saving || s.completionDue {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	if s.state != StateTyping {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, state)
	}
	s.stats.Pause()
	s.saving = true
	s.errMsg = ""
	token, fileID := s.token, s.fileID
	req := s.saveRequestLocked(model.StatusTyping)
	s.mu.Unlock()

	res, err := s.gateway.SaveProgress(ctx, fileID, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil && res.File != nil {
		s.files = model.UpdateFileItemInTree(s.files, *res.File)
	}
	if s.token != token {
		return err
	}
	s.saving = false
	if err != nil {
		err = fmt.Errorf("failed to pause: %w", err)
		s.errMsg = err.Error()
		s.stats.Resume()
		return err
	}
	if res.File != nil {
		s.file.Status = res.File.Status
	}
	s.state = StatePaused
	return nil
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, s.state)
	}
	s.stats.Resume()
	s.state = StateTyping
	return nil
}

// Complete finalizes statistics and saves the finished file. It may be called
// again after a failed save while the file is still fully typed.
func (s *Session) Complete(ctx context.Context) error {
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return ErrNoFile
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	if s.state != StateTyping {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, state)
	}
	if !s.buf.IsComplete() {
		s.mu.Unlock()
		return ErrNotComplete
	}
	s.stats.Complete()
	s.saving = true
	s.completionDue = true
	s.errMsg = ""
	token, fileID := s.token, s.fileID
	req := s.saveRequestLocked(model.StatusTyped)
	onCompleted := s.onRepositoryCompleted
	s.mu.Unlock()

	res, err := s.gateway.SaveProgress(ctx, fileID, req)

	s.mu.Lock()
	repoDone := false
	if err == nil && res.Repository != nil {
		s.files = model.SortFileItems(res.Repository.FileItems)
		repoDone = res.Repository.Progress >= 1.0
	}
	if s.token != token {
		s.mu.Unlock()
		return err
	}
	s.saving = false
	s.completionDue = false
	if err != nil {
		err = fmt.Errorf("failed to complete: %w", err)
		s.errMsg = err.Error()
		s.stats.Resume()
		s.mu.Unlock()
		return err
	}
	s.file.Status = model.StatusTyped
	s.state = StateCompleted
	s.mu.Unlock()

	if repoDone && onCompleted != nil {
		onCompleted()
	}
	return nil
}

// Reset clears the typed text and statistics of the loaded file and returns
// to ready. A save still in flight no longer affects the session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = uuid.NewString()
	s.buf = NewBuffer(s.text)
	if len(s.text.Lines) == 0 {
		s.buf = Buffer{}
	}
	s.stats.Reset()
	s.saving = false
	s.completionDue = false
	s.errMsg = ""
	s.state = StateReady
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:         s.state,
		FileID:        s.fileID,
		TargetLines:   append([]string(nil), s.buf.Target...),
		TypedLines:    append([]string(nil), s.buf.Typed...),
		CursorColumns: append([]int(nil), s.buf.Columns...),
		CursorRow:     s.buf.Row,
		Stats:         s.stats.Snapshot(),
		Saving:        s.saving,
		CompletionDue: s.completionDue,
		ErrorMessage:  s.errMsg,
	}
	if s.file != nil {
		file := *s.file
		snap.File = &file
	}
	return snap
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrorMessage returns the last surfaced error, if any.
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ClearError dismisses the current error message.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

// Files returns a copy of the file collection as last reported by the
// gateway.
func (s *Session) Files() []model.FileItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FileItem(nil), s.files...)
}

// SetFiles replaces the file collection.
func (s *Session) SetFiles(files []model.FileItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append([]model.FileItem(nil), files...)
}

// Progress returns the payload that a save would send right now.
func (s *Session) Progress() model.TypingProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) saveRequestLocked(status model.FileStatus) model.SaveRequest {
	return model.SaveRequest{
		Status:         status,
		TypingProgress: s.progressLocked(),
	}
}

func (s *Session) progressLocked() model.TypingProgress {
	snap := s.stats.Snapshot()
	return model.TypingProgress{
		Row:                   s.buf.Row,
		Column:                s.buf.Column(),
		ElapsedSeconds:        s.stats.ElapsedSeconds(),
		TotalCorrectTypeCount: snap.TotalCorrectTypeCount,
		TotalTypoCount:        snap.TotalTypoCount,
		Typos:                 CalculateTypos(s.buf.Typed, s.buf.Target),
	}
}
