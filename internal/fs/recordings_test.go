package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("frames"), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestRecordingFilter_Accept(t *testing.T) {
	root := t.TempDir()
	f, err := NewRecordingFilter(root, []string{"MP4", ".mkv"}, []string{"rejected/*", "!rejected/keep-*", "thumbs/"})
	if err != nil {
		t.Fatalf("NewRecordingFilter() error = %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"plain recording", filepath.Join(root, "clip.mp4"), true},
		{"extension case-insensitive", filepath.Join(root, "clip.MP4"), true},
		{"second extension", filepath.Join(root, "clip.mkv"), true},
		{"nested recording", filepath.Join(root, "2024", "clip.mp4"), true},
		{"wrong extension", filepath.Join(root, "clip.jpg"), false},
		{"hidden file", filepath.Join(root, ".clip.mp4"), false},
		{"partial upload", filepath.Join(root, "clip.mp4.part"), false},
		{"configured pattern", filepath.Join(root, "rejected", "clip.mp4"), false},
		{"keep rule re-admits", filepath.Join(root, "rejected", "keep-1.mp4"), true},
		{"upper-case temp name", filepath.Join(root, "CLIP.TMP"), false},
		{"inside hidden directory", filepath.Join(root, ".trash", "clip.mp4"), false},
		{"inside skipped directory", filepath.Join(root, "thumbs", "2024", "clip.mp4"), false},
		{"file named like a skipped directory", filepath.Join(root, "2024", "thumbs.mp4"), true},
		{"outside root", filepath.Join(filepath.Dir(root), "clip.mp4"), false},
		{"root itself", root, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Accept(tt.path); got != tt.want {
				t.Errorf("Accept(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRecordingFilter_SkipFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, SkipFileName), []byte("test_*\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := NewRecordingFilter(root, []string{".mp4"}, nil)
	if err != nil {
		t.Fatalf("NewRecordingFilter() error = %v", err)
	}
	if f.Accept(filepath.Join(root, "test_clip.mp4")) {
		t.Error("rule from skip file not applied")
	}
	if !f.Accept(filepath.Join(root, "clip.mp4")) {
		t.Error("recording rejected")
	}
}

func TestRecordingFilter_BadRule(t *testing.T) {
	root := t.TempDir()
	if _, err := NewRecordingFilter(root, nil, []string{"*.mp4", "[oops"}); err == nil {
		t.Fatal("NewRecordingFilter() with malformed rule expected error")
	} else if !strings.Contains(err.Error(), "config:2") {
		t.Errorf("error = %v, want it to name config:2", err)
	}

	if err := os.WriteFile(filepath.Join(root, SkipFileName), []byte("# comment\n!\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecordingFilter(root, nil, nil); err == nil {
		t.Error("NewRecordingFilter() with empty keep rule expected error")
	}
}

func TestRecordingFilter_Resolve(t *testing.T) {
	root := t.TempDir()
	f, err := NewRecordingFilter(root, []string{".mp4"}, nil)
	if err != nil {
		t.Fatalf("NewRecordingFilter() error = %v", err)
	}
	clip := filepath.Join(root, "clip.mp4")
	writeFile(t, clip, time.Now())
	if err := os.Mkdir(filepath.Join(root, "dir.mp4"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(clip, filepath.Join(root, "link.mp4")); err != nil {
		t.Fatal(err)
	}

	path, info, err := f.Resolve(clip)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if path != clip || info.Size() != 6 {
		t.Errorf("Resolve() = %s, %d bytes", path, info.Size())
	}

	for _, name := range []string{"dir.mp4", "link.mp4", "missing.mp4"} {
		if _, _, err := f.Resolve(filepath.Join(root, name)); err == nil {
			t.Errorf("Resolve(%s) expected error", name)
		}
	}
}

func TestRecordingFilter_Scan(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(root, "b.mp4"), base.Add(2*time.Minute))
	writeFile(t, filepath.Join(root, "a.mp4"), base.Add(time.Minute))
	writeFile(t, filepath.Join(root, "day2", "c.mp4"), base.Add(3*time.Minute))
	writeFile(t, filepath.Join(root, "notes.txt"), base)
	writeFile(t, filepath.Join(root, ".trash", "old.mp4"), base)

	f, err := NewRecordingFilter(root, []string{".mp4"}, nil)
	if err != nil {
		t.Fatalf("NewRecordingFilter() error = %v", err)
	}
	got, err := f.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "a.mp4"),
		filepath.Join(root, "b.mp4"),
		filepath.Join(root, "day2", "c.mp4"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}
