package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/eihwaz/internal/structure"
)

var (
	// Splits a tree-art line into (indent prefix, connector run, name).
	treeLineRe = regexp.MustCompile("^([\\s│|]*)([\\s├└─|+`\\-]*)(.*)$")
	// Connector characters that can bleed into a captured name.
	leadingTreeCharsRe = regexp.MustCompile("^[├└│─|+`\\-\\s]+")
)

// Dotted names that are conventionally directories despite containing a dot.
var dottedDirNames = map[string]struct{}{
	".git":    {},
	".vscode": {},
	".idea":   {},
	".github": {},
	".config": {},
}

// Extensionless names that are well-known files, not directories. The
// original no-extension-means-directory heuristic misclassifies these.
var wellKnownFiles = map[string]struct{}{
	"Makefile":      {},
	"makefile":      {},
	"Dockerfile":    {},
	"Containerfile": {},
	"LICENSE":       {},
	"LICENCE":       {},
	"README":        {},
	"CHANGELOG":     {},
	"AUTHORS":       {},
	"NOTICE":        {},
	"COPYING":       {},
	"Gemfile":       {},
	"Rakefile":      {},
	"Procfile":      {},
	"Vagrantfile":   {},
	"CMakeLists":    {},
	"Jenkinsfile":   {},
}

// DefaultDirHeuristic classifies a bare entry name with no trailing
// separator: dotted directory conventions win, well-known extensionless
// filenames stay files, and any other extensionless name is assumed to be a
// directory.
func DefaultDirHeuristic(name string) bool {
	if _, ok := dottedDirNames[name]; ok {
		return true
	}
	if _, ok := wellKnownFiles[name]; ok {
		return false
	}
	return !strings.Contains(name, ".")
}

type treeLevel struct {
	indent int
	node   *structure.Node
}

// parseTree reconstructs a tree from ASCII/box-drawing art. Indentation is
// measured in characters of the stripped prefix, not a fixed tab width;
// inconsistent indentation yields a best-effort structure plus a warning,
// never a hard failure.
func (p *Parser) parseTree(content string) Result {
	root := structure.NewDir()
	var warnings []string

	stack := []treeLevel{{indent: -1, node: root}}
	seenIndents := map[int]bool{}
	lastIndent := -1

	for lineNum, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := treeLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		prefix, connectors, rest := m[1], m[2], m[3]
		name := strings.TrimSpace(rest)
		if name == "" {
			continue
		}

		indent := utf8.RuneCountInString(prefix) + utf8.RuneCountInString(connectors)

		isDir := strings.HasSuffix(name, "/") || strings.HasSuffix(name, "\\")
		if isDir {
			name = strings.TrimRight(name, "/\\")
		}

		name = strings.TrimSpace(leadingTreeCharsRe.ReplaceAllString(name, ""))
		if name == "" {
			continue
		}
		if strings.ContainsAny(name, "<>:\"|?*\x00") {
			warnings = append(warnings, fmt.Sprintf("line %d: potentially invalid name %q", lineNum+1, name))
		}

		// A dedent to an indent column never seen before means the art's
		// indentation is inconsistent; the stack still recovers an ancestor.
		if indent < lastIndent && !seenIndents[indent] {
			warnings = append(warnings, fmt.Sprintf("line %d: inconsistent indentation", lineNum+1))
		}
		seenIndents[indent] = true
		lastIndent = indent

		// Restore the correct ancestor.
		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node

		if isDir || p.heuristic(name) {
			child, converted := parent.EnsureDir(name)
			if converted {
				warnings = append(warnings, fmt.Sprintf("line %d: %s: file entry upgraded to directory", lineNum+1, name))
			}
			stack = append(stack, treeLevel{indent: indent, node: child})
		} else {
			parent.EnsureFile(name)
		}
	}

	return Result{
		Success:   true,
		Structure: root,
		Format:    FormatTree,
		Warnings:  warnings,
		Stats:     structure.ComputeStats(root),
	}
}
