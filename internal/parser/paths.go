package parser

import (
	"fmt"
	"strings"

	"github.com/starford/eihwaz/internal/structure"
)

// foldPaths folds /-delimited paths into nested directories under root.
// Only the final segment of a path that does not end with a separator is a
// file; every other segment is a directory. A segment first seen as a file
// and later required as a directory is upgraded with a warning; the reverse
// direction (downgrading a directory to a file) never happens.
func foldPaths(root *structure.Node, paths []string, warnings *[]string) {
	for _, raw := range paths {
		p := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
		if p == "" {
			continue
		}
		endsDir := strings.HasSuffix(p, "/")

		var parts []string
		for _, part := range strings.Split(p, "/") {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			continue
		}

		cur := root
		for i, part := range parts {
			last := i == len(parts)-1
			if last && !endsDir {
				cur.EnsureFile(part)
				continue
			}
			child, converted := cur.EnsureDir(part)
			if converted {
				*warnings = append(*warnings, fmt.Sprintf("%s: file entry upgraded to directory", joinSegments(parts[:i+1])))
			}
			cur = child
		}
	}
}

func joinSegments(parts []string) string {
	return strings.Join(parts, "/")
}
