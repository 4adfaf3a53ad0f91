// Package testutil provides shared test helpers for building fixture trees
// and directories.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/eihwaz/internal/structure"
)

// Tree builds a structure tree from slash-separated paths; a trailing slash
// marks a directory. Parents are created implicitly.
func Tree(t *testing.T, paths ...string) *structure.Node {
	t.Helper()
	root := structure.NewDir()
	for _, p := range paths {
		isDir := strings.HasSuffix(p, "/")
		parts := strings.Split(strings.Trim(p, "/"), "/")
		cur := root
		for i, part := range parts {
			if i < len(parts)-1 || isDir {
				next, _ := cur.EnsureDir(part)
				cur = next
			} else {
				cur.EnsureFile(part)
			}
		}
	}
	return root
}

// WriteFiles materializes slash-separated paths under a fresh temp dir; a
// trailing slash creates a directory, anything else an empty file.
func WriteFiles(t *testing.T, paths ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, p := range paths {
		abs := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(p, "/")))
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(abs, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
