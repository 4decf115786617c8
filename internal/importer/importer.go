// Package importer reads a local source tree into a typeable repository.
package importer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/verte-zerg/codetype/internal/model"
)

// NoExtension names files without any extension.
const NoExtension = "no extension"

// WorktreeCommit is recorded when the source is not a git checkout.
const WorktreeCommit = "worktree"

// Preview describes a source tree before it is imported.
type Preview struct {
	Name       string
	Source     string
	CommitHash string
	Extensions []model.Extension
}

// ExtensionName returns the extension used to group and filter a file.
// Dotfiles use their last extension or their whole name; other files use
// everything after the first dot.
func ExtensionName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	if strings.HasPrefix(base, ".") {
		rest := base[1:]
		idx := strings.LastIndex(rest, ".")
		if idx <= 0 || idx == len(rest)-1 {
			return base
		}
		return rest[idx:]
	}
	parts := strings.Split(base, ".")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) <= 1 {
		return NoExtension
	}
	return "." + strings.Join(parts[1:], ".")
}

// PreviewDir counts the files of root per extension. Extensions are sorted
// by descending count, then name, and start out active.
func PreviewDir(root string) (Preview, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return Preview{}, fmt.Errorf("%s is not a directory", abs)
	}

	counts := map[string]int{}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			counts[ExtensionName(p)]++
		}
		return nil
	})
	if err != nil {
		return Preview{}, fmt.Errorf("failed to walk %s: %w", abs, err)
	}

	extensions := make([]model.Extension, 0, len(counts))
	for name, count := range counts {
		extensions = append(extensions, model.Extension{Name: name, FileCount: count, IsActive: true})
	}
	sort.Slice(extensions, func(i, j int) bool {
		if extensions[i].FileCount != extensions[j].FileCount {
			return extensions[i].FileCount > extensions[j].FileCount
		}
		return extensions[i].Name < extensions[j].Name
	})

	commit, err := CommitHash(abs)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Name:       filepath.Base(abs),
		Source:     abs,
		CommitHash: commit,
		Extensions: extensions,
	}, nil
}

// SelectExtensions toggles IsActive on extensions. An empty include list keeps
// everything active; exclude always wins.
func SelectExtensions(extensions []model.Extension, include, exclude []string) []model.Extension {
	in := normalizeSet(include)
	out := normalizeSet(exclude)
	selected := make([]model.Extension, len(extensions))
	for i, ext := range extensions {
		active := len(in) == 0 || in[ext.Name]
		if out[ext.Name] {
			active = false
		}
		ext.IsActive = active
		selected[i] = ext
	}
	return selected
}

func normalizeSet(names []string) map[string]bool {
	set := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if name != NoExtension && !strings.HasPrefix(name, ".") {
			name = "." + name
		}
		set[name] = true
	}
	return set
}

// Build turns a preview into a repository whose tree keeps only files with
// an active extension. Directories left without files are dropped.
func Build(p Preview) (model.Repository, error) {
	active := map[string]bool{}
	for _, ext := range p.Extensions {
		if ext.IsActive {
			active[ext.Name] = true
		}
	}
	if len(active) == 0 {
		return model.Repository{}, errors.New("no active extensions selected")
	}
	items, err := scanDir(p.Source, "", active)
	if err != nil {
		return model.Repository{}, err
	}
	return model.Repository{
		Name:       p.Name,
		URL:        p.Source,
		CommitHash: p.CommitHash,
		Extensions: p.Extensions,
		FileItems:  items,
	}, nil
}

func scanDir(root, rel string, active map[string]bool) ([]model.FileItem, error) {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	var items []model.FileItem
	for _, entry := range entries {
		name := entry.Name()
		p := name
		if rel != "" {
			p = rel + "/" + name
		}
		switch {
		case entry.IsDir():
			if name == ".git" {
				continue
			}
			children, err := scanDir(root, p, active)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				continue
			}
			items = append(items, model.FileItem{
				Name:      name,
				Path:      p,
				Type:      model.FileTypeDir,
				Status:    model.StatusUntyped,
				FileItems: children,
			})
		case entry.Type().IsRegular():
			if !active[ExtensionName(p)] {
				continue
			}
			items = append(items, model.FileItem{
				Name:   name,
				Path:   p,
				Type:   model.FileTypeFile,
				Status: model.StatusUntyped,
			})
		}
	}
	return items, nil
}

// ReadContent loads a file of the source tree and decodes it for typing.
func ReadContent(source, relPath string) (string, bool, error) {
	raw, err := os.ReadFile(filepath.Join(source, filepath.FromSlash(relPath)))
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	content, unsupported := DecodeContent(raw)
	return content, unsupported, nil
}

// DecodeContent drops invalid UTF-8 sequences and NUL bytes. Content with any
// non-ASCII character is reported as unsupported.
func DecodeContent(raw []byte) (string, bool) {
	content := string(raw)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}
	content = strings.ReplaceAll(content, "\x00", "")
	for i := 0; i < len(content); i++ {
		if content[i] > 0x7F {
			return content, true
		}
	}
	return content, false
}

// CommitHash returns the commit checked out in root, or WorktreeCommit when
// root is not a git checkout.
func CommitHash(root string) (string, error) {
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return "", err
	}
	if gitDir == "" {
		return WorktreeCommit, nil
	}
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	ref := strings.TrimSpace(string(head))
	if !strings.HasPrefix(ref, "ref:") {
		return ref, nil
	}
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "ref:"))
	if data, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref))); err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	hash, err := packedRef(gitDir, ref)
	if err != nil {
		return "", err
	}
	if hash == "" {
		// Fresh repository without commits.
		return WorktreeCommit, nil
	}
	return hash, nil
}

func resolveGitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat .git: %w", err)
	}
	if info.IsDir() {
		return dotGit, nil
	}
	// Linked worktrees and submodules carry a "gitdir: <path>" file.
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", fmt.Errorf("failed to read .git: %w", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", nil
	}
	dir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir, nil
}

func packedRef(gitDir, ref string) (string, error) {
	f, err := os.Open(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open packed-refs: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if ok && name == ref {
			return hash, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read packed-refs: %w", err)
	}
	return "", nil
}
