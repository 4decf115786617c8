package typing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/codetype/internal/model"
)

type saveCall struct {
	fileID int64
	req    model.SaveRequest
}

type fakeGateway struct {
	mu       sync.Mutex
	files    map[int64]model.FileItem
	saves    []saveCall
	fetchErr error
	saveErr  error
	repo     *model.Repository

	blockFile int64
	entered   chan struct{}
	release   chan struct{}
}

func newFakeGateway(files ...model.FileItem) *fakeGateway {
	gw := &fakeGateway{files: map[int64]model.FileItem{}}
	for _, f := range files {
		gw.files[f.ID] = f
	}
	return gw
}

func (g *fakeGateway) FetchFile(ctx context.Context, fileID int64) (model.FileItem, error) {
	if g.release != nil && fileID == g.blockFile {
		close(g.entered)
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return model.FileItem{}, g.fetchErr
	}
	f, ok := g.files[fileID]
	if !ok {
		return model.FileItem{}, errors.New("not found")
	}
	return f, nil
}

func (g *fakeGateway) SaveProgress(ctx context.Context, fileID int64, req model.SaveRequest) (model.SaveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves = append(g.saves, saveCall{fileID: fileID, req: req})
	if g.saveErr != nil {
		return model.SaveResult{}, g.saveErr
	}
	f := g.files[fileID]
	f.Status = req.Status
	progress := req.TypingProgress
	f.TypingProgress = &progress
	g.files[fileID] = f
	res := model.SaveResult{File: &f}
	if req.Status == model.StatusTyped && g.repo != nil {
		res.Repository = g.repo
	}
	return res, nil
}

func (g *fakeGateway) lastSave(t *testing.T) saveCall {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.saves) == 0 {
		t.Fatalf("expected a save call")
	}
	return g.saves[len(g.saves)-1]
}

func helloFile(id int64) model.FileItem {
	content := helloContent
	return model.FileItem{
		ID:           id,
		RepositoryID: 1,
		Name:         "hello.rb",
		Path:         "hello.rb",
		Type:         model.FileTypeFile,
		Status:       model.StatusUntyped,
		Content:      &content,
	}
}

func typeKeys(s *Session, input string) []KeystrokeResult {
	var results []KeystrokeResult
	for _, key := range keysFor(input) {
		results = append(results, s.Keystroke(key))
	}
	return results
}

func startedSession(t *testing.T, gw *fakeGateway, opts ...Option) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s := NewSession(gw, opts...)
	if _, err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, clock
}

func TestSessionPauseSendsProgress(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s, clock := startedSession(t, gw)

	typeKeys(s, "def hello_world\npust")
	clock.Advance(12 * time.Second)
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}

	call := gw.lastSave(t)
	p := call.req.TypingProgress
	if call.fileID != 1 || call.req.Status != model.StatusTyping {
		t.Fatalf("unexpected save call: %+v", call)
	}
	if p.Row != 1 || p.Column != 6 {
		t.Fatalf("expected resume point (1,6), got (%d,%d)", p.Row, p.Column)
	}
	if p.TotalCorrectTypeCount != 18 || p.TotalTypoCount != 2 {
		t.Fatalf("expected 18 correct and 2 typos, got %d/%d", p.TotalCorrectTypeCount, p.TotalTypoCount)
	}
	if p.ElapsedSeconds != 12 {
		t.Fatalf("expected 12 elapsed seconds, got %d", p.ElapsedSeconds)
	}
	expected := []model.Typo{{Row: 1, Column: 4, Character: "s"}, {Row: 1, Column: 5, Character: "t"}}
	if len(p.Typos) != 2 || p.Typos[0] != expected[0] || p.Typos[1] != expected[1] {
		t.Fatalf("unexpected typos: %+v", p.Typos)
	}
	if s.State() != StatePaused {
		t.Fatalf("expected paused, got %s", s.State())
	}

	clock.Advance(time.Hour)
	if got := s.Snapshot().Stats.ElapsedSeconds; got != 12 {
		t.Fatalf("expected clock frozen while paused, got %d", got)
	}
}

func TestSessionCompletionSendsFinalPosition(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s, clock := startedSession(t, gw)

	results := typeKeys(s, "def hello_world\npust 'Hello, World!'\nend\n")
	if !results[len(results)-1].CompletionDue {
		t.Fatalf("expected the last keystroke to finish the file")
	}
	for _, r := range results[:len(results)-1] {
		if r.CompletionDue {
			t.Fatalf("completion reported too early")
		}
	}
	clock.Advance(60 * time.Second)

	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	call := gw.lastSave(t)
	p := call.req.TypingProgress
	if call.req.Status != model.StatusTyped {
		t.Fatalf("expected typed status, got %s", call.req.Status)
	}
	if p.Row != 2 || p.Column != 4 {
		t.Fatalf("expected final position (2,4), got (%d,%d)", p.Row, p.Column)
	}
	if p.TotalCorrectTypeCount != 39 || p.TotalTypoCount != 2 || len(p.Typos) != 2 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if s.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", s.State())
	}
	snap := s.Snapshot()
	if snap.File.Status != model.StatusTyped {
		t.Fatalf("expected file marked typed, got %s", snap.File.Status)
	}
	if snap.Stats.WPM != WPM(39, 60) || snap.Stats.Accuracy != Accuracy(39, 2) {
		t.Fatalf("unexpected final stats: %+v", snap.Stats)
	}
}

func TestSessionPauseFailureKeepsTyping(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s, clock := startedSession(t, gw)

	typeKeys(s, "def")
	clock.Advance(5 * time.Second)
	gw.saveErr = errors.New("disk full")
	if err := s.Pause(context.Background()); err == nil {
		t.Fatalf("expected pause error")
	}
	if s.State() != StateTyping {
		t.Fatalf("expected to remain typing, got %s", s.State())
	}
	if s.ErrorMessage() == "" {
		t.Fatalf("expected error message to be surfaced")
	}
	snap := s.Snapshot()
	if snap.TypedLines[0] != "def" || snap.Stats.TotalCorrectTypeCount != 3 {
		t.Fatalf("expected buffer and stats intact, got %+v", snap)
	}
	clock.Advance(5 * time.Second)
	if got := s.Snapshot().Stats.ElapsedSeconds; got != 10 {
		t.Fatalf("expected clock to keep running, got %d", got)
	}
	if res := s.Keystroke(RuneKey(' ')); !res.Handled {
		t.Fatalf("expected typing to continue after failed pause")
	}
}

func TestSessionCompleteFailureCanRetry(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s, _ := startedSession(t, gw)

	typeKeys(s, "def hello_world\nputs 'Hello, World!'\nend\n")
	gw.saveErr = errors.New("offline")
	if err := s.Complete(context.Background()); err == nil {
		t.Fatalf("expected complete error")
	}
	if s.State() != StateTyping {
		t.Fatalf("expected to remain typing, got %s", s.State())
	}
	if s.Snapshot().CompletionDue {
		t.Fatalf("expected completion flag cleared after failure")
	}

	gw.saveErr = nil
	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("retry complete: %v", err)
	}
	if s.State() != StateCompleted {
		t.Fatalf("expected completed after retry, got %s", s.State())
	}
}

func TestSessionCompleteRequiresFullText(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s, _ := startedSession(t, gw)
	typeKeys(s, "def")
	if err := s.Complete(context.Background()); !errors.Is(err, ErrNotComplete) {
		t.Fatalf("expected ErrNotComplete, got %v", err)
	}
}

func TestSessionDiscardsKeysOutsideTyping(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s := NewSession(gw, WithClock(newFakeClock().Now))
	if res := s.Keystroke(RuneKey('d')); res.Handled {
		t.Fatalf("expected key discarded without a file")
	}
	if _, err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	if res := s.Keystroke(RuneKey('d')); res.Handled {
		t.Fatalf("expected key discarded while ready")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if res := s.Keystroke(RuneKey('d')); res.Handled {
		t.Fatalf("expected key discarded while paused")
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res := s.Keystroke(RuneKey('d')); !res.Handled || res.Verdict != VerdictCorrect {
		t.Fatalf("expected key handled after resume, got %+v", res)
	}
}

func TestSessionRejectsInvalidTransitions(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s := NewSession(gw)
	if err := s.Start(); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	if _, err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on resume from ready, got %v", err)
	}
	if err := s.Pause(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on pause from ready, got %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double start, got %v", err)
	}
}

func TestSessionResetClearsProgress(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	s, clock := startedSession(t, gw)
	typeKeys(s, "def hel")
	clock.Advance(3 * time.Second)

	s.Reset()
	snap := s.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("expected ready after reset, got %s", snap.State)
	}
	if !equalStrings(snap.TypedLines, []string{"", "  ", ""}) || !equalInts(snap.CursorColumns, []int{0, 2, 0}) {
		t.Fatalf("expected indentation-only buffer, got %q %v", snap.TypedLines, snap.CursorColumns)
	}
	if snap.Stats.ElapsedSeconds != 0 || snap.Stats.TotalCorrectTypeCount != 0 {
		t.Fatalf("expected zeroed stats, got %+v", snap.Stats)
	}
}

func TestSessionLoadRestoresProgress(t *testing.T) {
	file := helloFile(1)
	file.Status = model.StatusTyping
	file.TypingProgress = &model.TypingProgress{
		Row:                   1,
		Column:                6,
		ElapsedSeconds:        30,
		TotalCorrectTypeCount: 18,
		TotalTypoCount:        2,
		Typos:                 []model.Typo{{Row: 1, Column: 4, Character: "s"}, {Row: 1, Column: 5, Character: "t"}},
	}
	gw := newFakeGateway(file)
	s, clock := startedSession(t, gw)

	snap := s.Snapshot()
	if !equalStrings(snap.TypedLines, []string{"def hello_world\n", "  pust", ""}) {
		t.Fatalf("unexpected restored lines: %q", snap.TypedLines)
	}
	if snap.CursorRow != 1 || snap.Stats.TotalCorrectTypeCount != 18 {
		t.Fatalf("unexpected restored cursor or stats: %+v", snap)
	}

	typeKeys(s, " '")
	clock.Advance(10 * time.Second)
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	p := gw.lastSave(t).req.TypingProgress
	if p.ElapsedSeconds != 40 || p.TotalCorrectTypeCount != 20 || p.Column != 8 {
		t.Fatalf("expected progress to continue from the restored point, got %+v", p)
	}
}

func TestSessionLoadCompletedFile(t *testing.T) {
	file := helloFile(1)
	file.Status = model.StatusTyped
	file.TypingProgress = &model.TypingProgress{Row: 2, Column: 4, TotalCorrectTypeCount: 41}
	gw := newFakeGateway(file)
	s := NewSession(gw)
	if _, err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.State() != StateCompleted {
		t.Fatalf("expected completed state, got %s", s.State())
	}
	if res := s.Keystroke(RuneKey('x')); res.Handled {
		t.Fatalf("expected keys discarded on a completed file")
	}
}

func TestSessionLoadFailureSurfacesError(t *testing.T) {
	gw := newFakeGateway()
	gw.fetchErr = errors.New("boom")
	s := NewSession(gw)
	if _, err := s.Load(context.Background(), 1); err == nil {
		t.Fatalf("expected load error")
	}
	if s.ErrorMessage() == "" {
		t.Fatalf("expected error message")
	}
	if err := s.Start(); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile after failed load, got %v", err)
	}
}

func TestSessionDropsStaleLoad(t *testing.T) {
	second := helloFile(2)
	other := "x\n"
	second.Content = &other
	gw := newFakeGateway(helloFile(1), second)
	gw.blockFile = 1
	gw.entered = make(chan struct{})
	gw.release = make(chan struct{})
	s := NewSession(gw)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background(), 1)
		errc <- err
	}()
	<-gw.entered

	if _, err := s.Load(context.Background(), 2); err != nil {
		t.Fatalf("load second: %v", err)
	}
	close(gw.release)
	if err := <-errc; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("expected ErrStaleLoad, got %v", err)
	}

	snap := s.Snapshot()
	if snap.FileID != 2 || !equalStrings(snap.TargetLines, []string{"x\n"}) {
		t.Fatalf("expected second file to stay selected, got %d %q", snap.FileID, snap.TargetLines)
	}
}

func TestSessionPauseUpdatesFileTree(t *testing.T) {
	dirID := int64(10)
	tree := []model.FileItem{{
		ID:   dirID,
		Name: "lib",
		Type: model.FileTypeDir,
		FileItems: []model.FileItem{
			{ID: 1, ParentID: &dirID, Name: "hello.rb", Type: model.FileTypeFile, Status: model.StatusUntyped},
		},
	}}
	gw := newFakeGateway(helloFile(1))
	s, _ := startedSession(t, gw, WithFiles(tree))

	typeKeys(s, "d")
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	updated, ok := model.FindFileItem(s.Files(), 1)
	if !ok || updated.Status != model.StatusTyping {
		t.Fatalf("expected file status updated in tree, got %+v", updated)
	}
}

func TestSessionRepositoryCompletedCallback(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	gw.repo = &model.Repository{
		ID:       1,
		Progress: 1.0,
		FileItems: []model.FileItem{
			{ID: 3, Name: "b.rb", Type: model.FileTypeFile, Status: model.StatusTyped},
			{ID: 1, Name: "a.rb", Type: model.FileTypeFile, Status: model.StatusTyped},
		},
	}
	called := 0
	s, _ := startedSession(t, gw, WithRepositoryCompleted(func() { called++ }))

	typeKeys(s, "def hello_world\nputs 'Hello, World!'\nend\n")
	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if called != 1 {
		t.Fatalf("expected callback once, got %d", called)
	}
	files := s.Files()
	if len(files) != 2 || files[0].Name != "a.rb" {
		t.Fatalf("expected sorted repository files, got %+v", files)
	}
}

func TestSessionPartialRepositoryDoesNotFireCallback(t *testing.T) {
	gw := newFakeGateway(helloFile(1))
	gw.repo = &model.Repository{ID: 1, Progress: 0.5}
	called := false
	s, _ := startedSession(t, gw, WithRepositoryCompleted(func() { called = true }))

	typeKeys(s, "def hello_world\nputs 'Hello, World!'\nend\n")
	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if called {
		t.Fatalf("expected no callback for a partially typed repository")
	}
}

func TestSessionFilesReturnsCopy(t *testing.T) {
	files := []model.FileItem{{ID: 1, Name: "hello.rb", Type: model.FileTypeFile, Status: model.StatusUntyped}}
	s := NewSession(newFakeGateway(helloFile(1)), WithFiles(files))

	got := s.Files()
	got[0].Status = model.StatusTyped
	if s.Files()[0].Status != model.StatusUntyped {
		t.Fatalf("mutating the returned slice changed the session")
	}

	s.SetFiles(got)
	got[0].Status = model.StatusUnsupported
	if s.Files()[0].Status != model.StatusTyped {
		t.Fatalf("mutating the slice passed to SetFiles changed the session")
	}
}
