package model

import (
	"sort"
	"strings"
)

// SortFileItems returns a copy of items ordered directories first, then by
// name, applied recursively to every level.
func SortFileItems(items []FileItem) []FileItem {
	if items == nil {
		return nil
	}
	out := make([]FileItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == FileTypeDir
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	for i := range out {
		out[i].FileItems = SortFileItems(out[i].FileItems)
	}
	return out
}

// UpdateFileItemInTree returns a copy of items where the node with the same ID
// as updated is replaced. Children of the old node are kept when the
// replacement carries none.
func UpdateFileItemInTree(items []FileItem, updated FileItem) []FileItem {
	out := make([]FileItem, len(items))
	for i, item := range items {
		if item.ID == updated.ID {
			next := updated
			if len(next.FileItems) == 0 {
				next.FileItems = item.FileItems
			}
			out[i] = next
			continue
		}
		if len(item.FileItems) > 0 {
			item.FileItems = UpdateFileItemInTree(item.FileItems, updated)
		}
		out[i] = item
	}
	return out
}

// Walk visits every node depth-first in tree order. Returning false from fn
// stops the walk.
func Walk(items []FileItem, fn func(FileItem) bool) bool {
	for _, item := range items {
		if !fn(item) {
			return false
		}
		if !Walk(item.FileItems, fn) {
			return false
		}
	}
	return true
}

// FlattenFiles returns the regular files of the tree in walk order.
func FlattenFiles(items []FileItem) []FileItem {
	var files []FileItem
	Walk(items, func(item FileItem) bool {
		if item.IsFile() {
			files = append(files, item)
		}
		return true
	})
	return files
}

// FindFileItem looks up a node by ID.
func FindFileItem(items []FileItem, id int64) (FileItem, bool) {
	var found FileItem
	ok := false
	Walk(items, func(item FileItem) bool {
		if item.ID == id {
			found = item
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// FirstUntypedFile returns the first file in tree order that is not done yet.
func FirstUntypedFile(items []FileItem) (FileItem, bool) {
	for _, f := range FlattenFiles(items) {
		if !f.Status.Done() {
			return f, true
		}
	}
	return FileItem{}, false
}

// Progress computes the share of files that are typed or unsupported.
// A tree without files counts as complete.
func Progress(items []FileItem) float64 {
	files := FlattenFiles(items)
	if len(files) == 0 {
		return 1.0
	}
	done := 0
	for _, f := range files {
		if f.Status.Done() {
			done++
		}
	}
	return float64(done) / float64(len(files))
}
