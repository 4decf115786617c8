package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/codetype/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestExtensionName(t *testing.T) {
	cases := map[string]string{
		"main.rb":               ".rb",
		"lib/foo.test.ts":       ".test.ts",
		"Makefile":              NoExtension,
		".gitignore":            ".gitignore",
		"config/.eslintrc.json": ".json",
		"archive.":              NoExtension,
	}
	for input, want := range cases {
		if got := ExtensionName(input); got != want {
			t.Fatalf("ExtensionName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPreviewDirCountsAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rb", "a")
	writeFile(t, root, "lib/b.rb", "b")
	writeFile(t, root, "lib/c.go", "c")
	writeFile(t, root, "d.go", "d")
	writeFile(t, root, "README", "r")
	writeFile(t, root, ".git/HEAD", "0123abcd\n")
	writeFile(t, root, ".git/config", "[core]\n")

	p, err := PreviewDir(root)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if p.CommitHash != "0123abcd" {
		t.Fatalf("expected detached HEAD hash, got %q", p.CommitHash)
	}
	want := []model.Extension{
		{Name: ".go", FileCount: 2, IsActive: true},
		{Name: ".rb", FileCount: 2, IsActive: true},
		{Name: NoExtension, FileCount: 1, IsActive: true},
	}
	if len(p.Extensions) != len(want) {
		t.Fatalf("unexpected extensions: %+v", p.Extensions)
	}
	for i := range want {
		if p.Extensions[i] != want[i] {
			t.Fatalf("extension %d: expected %+v, got %+v", i, want[i], p.Extensions[i])
		}
	}
	if p.Name != filepath.Base(root) {
		t.Fatalf("expected name from directory, got %q", p.Name)
	}
}

func TestBuildFiltersInactiveExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rb", "a")
	writeFile(t, root, "lib/b.rb", "b")
	writeFile(t, root, "docs/guide.md", "g")

	p, err := PreviewDir(root)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	p.Extensions = SelectExtensions(p.Extensions, []string{"rb"}, nil)
	repo, err := Build(p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if repo.CommitHash != WorktreeCommit {
		t.Fatalf("expected worktree commit, got %q", repo.CommitHash)
	}
	if len(repo.FileItems) != 2 {
		t.Fatalf("expected docs to be dropped, got %+v", repo.FileItems)
	}
	for _, item := range repo.FileItems {
		if item.Name == "docs" {
			t.Fatalf("expected empty directory to be dropped")
		}
		if item.Name == "lib" && (len(item.FileItems) != 1 || item.FileItems[0].Path != "lib/b.rb") {
			t.Fatalf("unexpected lib children: %+v", item.FileItems)
		}
	}
}

func TestSelectExtensionsExcludeWins(t *testing.T) {
	exts := []model.Extension{{Name: ".go"}, {Name: ".rb"}, {Name: NoExtension}}
	got := SelectExtensions(exts, nil, []string{".rb", NoExtension})
	if !got[0].IsActive || got[1].IsActive || got[2].IsActive {
		t.Fatalf("unexpected selection: %+v", got)
	}
	if exts[0].IsActive {
		t.Fatalf("expected input to be left untouched")
	}
}

func TestBuildWithoutActiveExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rb", "a")
	p, err := PreviewDir(root)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	p.Extensions = SelectExtensions(p.Extensions, nil, []string{".rb"})
	if _, err := Build(p); err == nil {
		t.Fatalf("expected an error without active extensions")
	}
}

func TestCommitHashFollowsRefs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, root, ".git/refs/heads/main", "feedbeef\n")
	if got, err := CommitHash(root); err != nil || got != "feedbeef" {
		t.Fatalf("expected loose ref hash, got %q %v", got, err)
	}

	packed := t.TempDir()
	writeFile(t, packed, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, packed, ".git/packed-refs", "# pack-refs with: peeled\ncafe1234 refs/heads/main\n^deadbeef\n")
	if got, err := CommitHash(packed); err != nil || got != "cafe1234" {
		t.Fatalf("expected packed ref hash, got %q %v", got, err)
	}
}

func TestDecodeContent(t *testing.T) {
	content, unsupported := DecodeContent([]byte("puts 1\x00\n"))
	if content != "puts 1\n" || unsupported {
		t.Fatalf("expected NUL removed, got %q %v", content, unsupported)
	}
	content, unsupported = DecodeContent([]byte("a\xffb"))
	if content != "ab" || unsupported {
		t.Fatalf("expected invalid bytes dropped, got %q %v", content, unsupported)
	}
	if _, unsupported := DecodeContent([]byte("puts 'héllo'")); !unsupported {
		t.Fatalf("expected non-ASCII content to be unsupported")
	}
}
