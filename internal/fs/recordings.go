package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RecordingFilter decides which files in the recordings directory are
// finished videos that belong in the upload queue.
type RecordingFilter struct {
	root       string
	extensions map[string]bool
	skip       skipRules
}

// NewRecordingFilter creates a filter rooted at root. Extensions are matched
// case-insensitively and may be given with or without the leading dot.
// Skip rules apply in order: the defaults, then patterns, then any
// .nayanignore in root.
func NewRecordingFilter(root string, extensions, patterns []string) (*RecordingFilter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving recordings dir: %w", err)
	}

	skipPath := filepath.Join(abs, SkipFileName)
	fromFile, err := readSkipFile(skipPath)
	if err != nil {
		return nil, err
	}

	var rules skipRules
	for _, src := range []struct {
		name  string
		lines []string
	}{
		{"default", defaultSkipRules},
		{"config", patterns},
		{skipPath, fromFile},
	} {
		rs, err := parseSkipRules(src.name, src.lines)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}

	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	return &RecordingFilter{root: abs, extensions: exts, skip: rules}, nil
}

// Root returns the absolute recordings directory.
func (f *RecordingFilter) Root() string { return f.root }

// Accept reports whether path names a recording by extension and skip
// rules. It does not touch the filesystem.
func (f *RecordingFilter) Accept(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return false
	}
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(filepath.Ext(abs))] {
		return false
	}
	return !f.skip.skipsFile(rel)
}

// Resolve returns the absolute path and info of an accepted recording.
// Directories, symlinks and special files are rejected.
func (f *RecordingFilter) Resolve(path string) (string, fs.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("stat recording: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode.IsDir():
		return "", nil, fmt.Errorf("recording is a directory: %s", abs)
	case mode&os.ModeSymlink != 0:
		return "", nil, fmt.Errorf("symlinks not supported: %s", abs)
	case !mode.IsRegular():
		return "", nil, fmt.Errorf("not a regular file: %s", abs)
	}
	if !f.Accept(abs) {
		return "", nil, fmt.Errorf("not a recording: %s", abs)
	}
	return abs, info, nil
}

// Scan lists accepted recordings under the root, oldest first by
// modification time.
func (f *RecordingFilter) Scan() ([]string, error) {
	type found struct {
		path    string
		modTime int64
	}
	var files []found

	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != f.root && f.skip.skips(mustRel(f.root, p), true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !f.Accept(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		files = append(files, found{p, info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking recordings: %w", err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime != files[j].modTime {
			return files[i].modTime < files[j].modTime
		}
		return files[i].path < files[j].path
	})
	paths := make([]string, len(files))
	for i, fl := range files {
		paths[i] = fl.path
	}
	return paths, nil
}

func mustRel(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return rel
}
