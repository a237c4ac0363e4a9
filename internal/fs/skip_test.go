package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSkipRules_Skips(t *testing.T) {
	tests := []struct {
		name  string
		rules []string
		rel   string
		isDir bool
		want  bool
	}{
		{"base name glob", []string{"*.mov"}, "clip.mov", false, true},
		{"base name glob in subdirectory", []string{"*.mov"}, filepath.Join("sub", "clip.mov"), false, true},
		{"different extension", []string{"*.mov"}, "clip.mp4", false, false},
		{"case-insensitive", []string{"*.tmp"}, "CLIP.TMP", false, true},
		{"path rule", []string{"rejected/*.mp4"}, filepath.Join("rejected", "a.mp4"), false, true},
		{"path rule wrong dir", []string{"rejected/*.mp4"}, filepath.Join("kept", "a.mp4"), false, false},
		{"directory rule on directory", []string{"thumbs/"}, "thumbs", true, true},
		{"directory rule ignores files", []string{"thumbs/"}, "thumbs", false, false},
		{"keep rule re-admits", []string{"*.mp4", "!keep-*"}, "keep-1.mp4", false, false},
		{"last rule wins", []string{"!keep-*", "*.mp4"}, "keep-1.mp4", false, true},
		{"no rules", nil, "anything.mp4", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := parseSkipRules("test", tt.rules)
			if err != nil {
				t.Fatalf("parseSkipRules() error = %v", err)
			}
			if got := rs.skips(tt.rel, tt.isDir); got != tt.want {
				t.Errorf("skips(%q, %v) = %v, want %v", tt.rel, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestSkipRules_SkipsFileBelowSkippedDirectory(t *testing.T) {
	rs, err := parseSkipRules("test", []string{"thumbs/", "!*.mp4"})
	if err != nil {
		t.Fatal(err)
	}
	if !rs.skipsFile(filepath.Join("day1", "thumbs", "a.mp4")) {
		t.Error("file below a skipped directory was admitted")
	}
	if rs.skipsFile(filepath.Join("day1", "a.mp4")) {
		t.Error("file outside skipped directory was skipped")
	}
}

func TestParseSkipRules(t *testing.T) {
	rs, err := parseSkipRules("test", []string{"", "  ", "# comment", "!Keep-*", "Thumbs/", "a/b/*.MP4"})
	if err != nil {
		t.Fatalf("parseSkipRules() error = %v", err)
	}
	want := skipRules{
		{glob: "keep-*", keep: true},
		{glob: "thumbs", dirOnly: true},
		{glob: "a/b/*.mp4", path: true},
	}
	if len(rs) != len(want) {
		t.Fatalf("parsed %d rules, want %d", len(rs), len(want))
	}
	for i := range want {
		if rs[i] != want[i] {
			t.Errorf("rule %d = %+v, want %+v", i, rs[i], want[i])
		}
	}

	if _, err := parseSkipRules("test", []string{"[a-"}); err == nil {
		t.Error("parseSkipRules() with malformed glob expected error")
	}
}

func TestReadSkipFile(t *testing.T) {
	t.Run("reads lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), SkipFileName)
		if err := os.WriteFile(path, []byte("*.mov\n# comment\n\n*.tmp\n"), 0644); err != nil {
			t.Fatal(err)
		}
		lines, err := readSkipFile(path)
		if err != nil {
			t.Fatalf("readSkipFile() error = %v", err)
		}
		if len(lines) != 4 {
			t.Errorf("read %d lines, want 4", len(lines))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		lines, err := readSkipFile(filepath.Join(t.TempDir(), SkipFileName))
		if err != nil || lines != nil {
			t.Errorf("readSkipFile() = %v, %v; want nil, nil", lines, err)
		}
	})
}
