package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/codetype/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "codetype.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return st
}

// sampleRepository builds:
//
//	lib/
//	  util.rb
//	  sub/
//	    deep.rb
//	main.rb
//	README
func sampleRepository() model.Repository {
	return model.Repository{
		Name:       "sample",
		URL:        "/tmp/sample",
		CommitHash: "abc123",
		Extensions: []model.Extension{
			{Name: ".rb", FileCount: 3, IsActive: true},
			{Name: "no extension", FileCount: 1, IsActive: true},
		},
		FileItems: []model.FileItem{
			{Name: "main.rb", Path: "main.rb", Type: model.FileTypeFile},
			{Name: "README", Path: "README", Type: model.FileTypeFile},
			{
				Name: "lib", Path: "lib", Type: model.FileTypeDir,
				FileItems: []model.FileItem{
					{Name: "util.rb", Path: "lib/util.rb", Type: model.FileTypeFile},
					{
						Name: "sub", Path: "lib/sub", Type: model.FileTypeDir,
						FileItems: []model.FileItem{
							{Name: "deep.rb", Path: "lib/sub/deep.rb", Type: model.FileTypeFile},
						},
					},
				},
			},
		},
	}
}

func findByPath(t *testing.T, items []model.FileItem, path string) model.FileItem {
	t.Helper()
	var found model.FileItem
	ok := false
	model.Walk(items, func(item model.FileItem) bool {
		if item.Path == path {
			found = item
			ok = true
			return false
		}
		return true
	})
	if !ok {
		t.Fatalf("file item %s not found", path)
	}
	return found
}

func TestCreateRepositoryBuildsSortedTree(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	repo, err := st.CreateRepository(ctx, sampleRepository())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	if repo.ID == 0 || repo.Progress != 0 {
		t.Fatalf("unexpected repository: id %d progress %v", repo.ID, repo.Progress)
	}
	if len(repo.FileItems) != 3 || repo.FileItems[0].Name != "lib" || repo.FileItems[1].Name != "main.rb" {
		t.Fatalf("expected directories first then names, got %+v", repo.FileItems)
	}
	deep := findByPath(t, repo.FileItems, "lib/sub/deep.rb")
	sub := findByPath(t, repo.FileItems, "lib/sub")
	if deep.ParentID == nil || *deep.ParentID != sub.ID {
		t.Fatalf("expected deep.rb under lib/sub")
	}
	if deep.Status != model.StatusUntyped {
		t.Fatalf("expected untyped status, got %s", deep.Status)
	}
	if len(repo.Extensions) != 2 || repo.Extensions[0].Name != ".rb" || !repo.Extensions[0].IsActive {
		t.Fatalf("unexpected extensions: %+v", repo.Extensions)
	}
}

func TestCreateRepositoryValidates(t *testing.T) {
	st := openTestStore(t)
	repo := sampleRepository()
	repo.CommitHash = ""
	_, err := st.CreateRepository(context.Background(), repo)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "commit_hash" {
		t.Fatalf("expected commit_hash validation error, got %v", err)
	}
}

func TestSaveTypingProgressPause(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	repo, err := st.CreateRepository(ctx, sampleRepository())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	file := findByPath(t, repo.FileItems, "main.rb")

	req := model.SaveRequest{
		Status: model.StatusTyping,
		TypingProgress: model.TypingProgress{
			Row:                   1,
			Column:                6,
			ElapsedSeconds:        60,
			TotalCorrectTypeCount: 150,
			TotalTypoCount:        10,
			Typos:                 []model.Typo{{Row: 1, Column: 4, Character: "s"}, {Row: 1, Column: 5, Character: " "}},
		},
	}
	res, err := st.SaveTypingProgress(ctx, repo.ID, file.ID, req)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.File == nil || res.Repository != nil {
		t.Fatalf("expected a file result for a pause")
	}
	if res.File.Status != model.StatusTyping {
		t.Fatalf("expected typing status, got %s", res.File.Status)
	}
	p := res.File.TypingProgress
	if p == nil || p.Row != 1 || p.Column != 6 || len(p.Typos) != 2 || p.Typos[1].Character != " " {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if *p.Accuracy != 93.8 || *p.WPM != 30.0 {
		t.Fatalf("expected derived accuracy 93.8 and wpm 30.0, got %v %v", *p.Accuracy, *p.WPM)
	}

	// A second save replaces the ledger.
	req.TypingProgress.Typos = []model.Typo{{Row: 2, Column: 0, Character: "x"}}
	res, err = st.SaveTypingProgress(ctx, repo.ID, file.ID, req)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(res.File.TypingProgress.Typos) != 1 || res.File.TypingProgress.Typos[0].Row != 2 {
		t.Fatalf("expected replaced typos, got %+v", res.File.TypingProgress.Typos)
	}

	repos, err := st.ListRepositories(ctx)
	if err != nil {
		t.Fatalf("list repositories: %v", err)
	}
	if len(repos) != 1 || repos[0].LastTypedAt == nil {
		t.Fatalf("expected last_typed_at to be stamped")
	}
}

func TestSaveTypingProgressCompletionPropagates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	repo, err := st.CreateRepository(ctx, sampleRepository())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	typed := func(path string) model.SaveResult {
		t.Helper()
		file := findByPath(t, repo.FileItems, path)
		res, err := st.SaveTypingProgress(ctx, repo.ID, file.ID, model.SaveRequest{
			Status:         model.StatusTyped,
			TypingProgress: model.TypingProgress{Row: 3, Column: 1, ElapsedSeconds: 30, TotalCorrectTypeCount: 40, TotalTypoCount: 2},
		})
		if err != nil {
			t.Fatalf("complete %s: %v", path, err)
		}
		if res.Repository == nil {
			t.Fatalf("expected repository result for a completion")
		}
		return res
	}

	res := typed("lib/sub/deep.rb")
	if got := findByPath(t, res.Repository.FileItems, "lib/sub").Status; got != model.StatusTyped {
		t.Fatalf("expected lib/sub typed, got %s", got)
	}
	if got := findByPath(t, res.Repository.FileItems, "lib").Status; got != model.StatusUntyped {
		t.Fatalf("expected lib to wait for util.rb, got %s", got)
	}
	if res.Repository.Progress != 0.25 {
		t.Fatalf("expected progress 0.25, got %v", res.Repository.Progress)
	}

	res = typed("lib/util.rb")
	if got := findByPath(t, res.Repository.FileItems, "lib").Status; got != model.StatusTyped {
		t.Fatalf("expected lib typed, got %s", got)
	}

	sessions, err := st.ListSessions(ctx, model.StatsConfig{RepositoryID: repo.ID})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].Path != "lib/sub/deep.rb" || sessions[1].Correct != 40 {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestSaveTypingProgressRejectsInvalidPayloads(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	repo, err := st.CreateRepository(ctx, sampleRepository())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	file := findByPath(t, repo.FileItems, "main.rb")

	_, err = st.SaveTypingProgress(ctx, repo.ID, file.ID, model.SaveRequest{Status: model.StatusUntyped})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	_, err = st.SaveTypingProgress(ctx, repo.ID, file.ID, model.SaveRequest{
		Status:         model.StatusTyping,
		TypingProgress: model.TypingProgress{Row: -1},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "typing_progress.row" {
		t.Fatalf("expected row validation error, got %v", err)
	}

	_, err = st.SaveTypingProgress(ctx, repo.ID, file.ID, model.SaveRequest{
		Status:         model.StatusTyping,
		TypingProgress: model.TypingProgress{Typos: []model.Typo{{Row: 0, Column: 0, Character: ""}}},
	})
	if !errors.As(err, &verr) || verr.Field != "typos.character" {
		t.Fatalf("expected blank character error, got %v", err)
	}

	_, err = st.SaveTypingProgress(ctx, repo.ID+1, file.ID, model.SaveRequest{Status: model.StatusTyping})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a file of another repository, got %v", err)
	}

	got, err := st.GetFileItem(ctx, repo.ID, file.ID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.Status != model.StatusUntyped || got.TypingProgress != nil {
		t.Fatalf("expected rejected saves to leave the file untouched, got %+v", got)
	}
}

func TestSetFileContentMarksUnsupported(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	repo, err := st.CreateRepository(ctx, sampleRepository())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	deep := findByPath(t, repo.FileItems, "lib/sub/deep.rb")

	file, err := st.SetFileContent(ctx, repo.ID, deep.ID, "puts 'こんにちは'\n", true)
	if err != nil {
		t.Fatalf("set content: %v", err)
	}
	if file.Status != model.StatusUnsupported || file.Content == nil {
		t.Fatalf("expected unsupported file with content, got %+v", file)
	}
	repo, err = st.GetRepository(ctx, repo.ID)
	if err != nil {
		t.Fatalf("get repository: %v", err)
	}
	if got := findByPath(t, repo.FileItems, "lib/sub").Status; got != model.StatusTyped {
		t.Fatalf("expected parent typed once its only child is unsupported, got %s", got)
	}
	if repo.Progress != 0.25 {
		t.Fatalf("expected unsupported files to count as done, got %v", repo.Progress)
	}
}

func TestFindAndDeleteRepository(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	repo, err := st.CreateRepository(ctx, sampleRepository())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	file := findByPath(t, repo.FileItems, "main.rb")
	if _, err := st.SaveTypingProgress(ctx, repo.ID, file.ID, model.SaveRequest{
		Status:         model.StatusTyped,
		TypingProgress: model.TypingProgress{Typos: []model.Typo{{Row: 0, Column: 0, Character: "x"}}},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	byName, err := st.FindRepository(ctx, "sample")
	if err != nil || byName.ID != repo.ID {
		t.Fatalf("find by name: %v", err)
	}
	if _, err := st.FindRepository(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := st.DeleteRepository(ctx, repo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetRepository(ctx, repo.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected repository to be gone, got %v", err)
	}
	var remaining int
	for _, table := range []string{"extensions", "file_items", "typing_progresses", "typos", "sessions"} {
		if err := st.db.Get(&remaining, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if remaining != 0 {
			t.Fatalf("expected %s to be empty, got %d rows", table, remaining)
		}
	}
	if err := st.DeleteRepository(ctx, repo.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestProgressOfEmptyRepository(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	repo, err := st.CreateRepository(ctx, model.Repository{Name: "empty", URL: "/tmp/empty", CommitHash: "worktree"})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	if repo.Progress != 1.0 {
		t.Fatalf("expected empty repository progress 1.0, got %v", repo.Progress)
	}
	repos, err := st.ListRepositories(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(repos) != 1 || repos[0].Progress != 1.0 {
		t.Fatalf("expected listed progress 1.0, got %+v", repos)
	}
}
