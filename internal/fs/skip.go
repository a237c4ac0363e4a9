package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SkipFileName is read from the recordings directory for extra skip rules.
const SkipFileName = ".nayanignore"

// defaultSkipRules are always applied. The camera writes partial recordings
// under temporary names before renaming them into place.
var defaultSkipRules = []string{SkipFileName, ".*", "*.tmp", "*.part"}

// skipRule is one parsed line of a skip list.
//
//	*.tmp         base name glob
//	rejected/*    glob on the slash-separated path from the recordings root
//	thumbnails/   directory only; everything below it is skipped
//	!keep-*.mp4   re-admits a file an earlier rule skipped
type skipRule struct {
	glob    string
	keep    bool
	dirOnly bool
	path    bool
}

// skipRules keep files in the recordings directory out of the upload queue.
// Matching is case-insensitive since camera firmware writes upper-case names,
// and the last matching rule wins.
type skipRules []skipRule

// parseSkipRules parses lines from source. Blank lines and lines starting with
// '#' are skipped; a malformed glob is an error naming source and line.
func parseSkipRules(source string, lines []string) (skipRules, error) {
	var rules skipRules
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var r skipRule
		if rest, ok := strings.CutPrefix(line, "!"); ok {
			r.keep = true
			line = rest
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		if line == "" {
			return nil, fmt.Errorf("%s:%d: empty skip rule", source, i+1)
		}
		r.path = strings.Contains(line, "/")
		r.glob = strings.ToLower(line)
		if _, err := path.Match(r.glob, ""); err != nil {
			return nil, fmt.Errorf("%s:%d: skip rule %q: %w", source, i+1, lines[i], err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// skips reports whether rel, relative to the recordings root, is skipped.
// Directory-only rules apply when isDir is set.
func (rs skipRules) skips(rel string, isDir bool) bool {
	rel = strings.ToLower(filepath.ToSlash(rel))
	base := path.Base(rel)

	skipped := false
	for _, r := range rs {
		if r.dirOnly && !isDir {
			continue
		}
		target := base
		if r.path {
			target = rel
		}
		if ok, _ := path.Match(r.glob, target); ok {
			skipped = !r.keep
		}
	}
	return skipped
}

// skipsFile reports whether the file at rel is skipped by its own rules or
// lies below a skipped directory. A keep rule cannot re-admit a file whose
// directory is skipped.
func (rs skipRules) skipsFile(rel string) bool {
	rel = filepath.ToSlash(rel)
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if rs.skips(dir, true) {
			return true
		}
	}
	return rs.skips(rel, false)
}

// readSkipFile returns the raw lines of a skip file, or nil when it does not
// exist.
func readSkipFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("opening skip file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading skip file: %w", err)
	}
	return lines, nil
}
