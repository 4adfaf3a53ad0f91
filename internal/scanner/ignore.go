package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
)

// DefaultIgnorePatterns excludes VCS metadata, dependency directories, build
// output, and OS cruft from scans. A trailing slash restricts a pattern to
// directories.
var DefaultIgnorePatterns = []string{
	// Version control
	".git/", ".svn/", ".hg/", ".bzr/",
	// Dependencies
	"node_modules/", "vendor/", "bower_components/",
	"venv/", ".venv/", "__pycache__/",
	// Build output
	"dist/", "build/", "out/", "target/", "bin/", "obj/",
	// Caches
	".cache/", ".sass-cache/", ".parcel-cache/",
	// IDE
	".idea/", ".vscode/", "*.swp", "*.swo",
	// OS
	".DS_Store", "Thumbs.db", "desktop.ini",
	// Logs
	"*.log",
}

type pattern struct {
	glob    string
	dirOnly bool
}

// PatternSet matches entry names and scan-root-relative paths against
// glob-style ignore patterns.
type PatternSet struct {
	patterns []pattern
	raw      []string
}

// NewPatternSet builds a set from the given pattern lists, dropping
// duplicates while keeping first-seen order in Raw.
func NewPatternSet(lists ...[]string) *PatternSet {
	s := &PatternSet{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, raw := range list {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			s.raw = append(s.raw, raw)
			p := pattern{glob: raw}
			if strings.HasSuffix(raw, "/") {
				p.dirOnly = true
				p.glob = strings.TrimSuffix(raw, "/")
			}
			s.patterns = append(s.patterns, p)
		}
	}
	return s
}

// Match reports whether an entry should be ignored. Patterns are tried
// against the bare name and against the path relative to the scan root;
// directory-only patterns match only directories.
func (s *PatternSet) Match(name, relPath string, isDir bool) bool {
	for _, p := range s.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if ok, _ := path.Match(p.glob, name); ok {
			return true
		}
		if ok, _ := path.Match(p.glob, relPath); ok {
			return true
		}
	}
	return false
}

// Raw returns the patterns in first-seen order.
func (s *PatternSet) Raw() []string {
	return s.raw
}

// sortedPatterns returns a canonically ordered copy, used for cache keys.
func sortedPatterns(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// LoadIgnoreFile reads one glob pattern per line, skipping blank lines and
// #-comments.
func LoadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scanner: open ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanner: read ignore file: %w", err)
	}
	return patterns, nil
}
