// Package parser turns textual structure descriptions into structure trees,
// auto-detecting among nested JSON, flat JSON path arrays, ASCII tree art,
// and plain path lists.
package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/eihwaz/internal/structure"
)

// Format identifies an input notation.
type Format int

// Supported input formats.
const (
	FormatUnknown Format = iota
	FormatJSONNested
	FormatJSONFlat
	FormatTree
	FormatPlain
)

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSONNested:
		return "json-nested"
	case FormatJSONFlat:
		return "json-flat"
	case FormatTree:
		return "tree"
	case FormatPlain:
		return "plain"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name (as accepted on the CLI) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatUnknown, nil
	case "json", "json-nested":
		return FormatJSONNested, nil
	case "json-flat":
		return FormatJSONFlat, nil
	case "tree":
		return FormatTree, nil
	case "plain", "paths":
		return FormatPlain, nil
	default:
		return FormatUnknown, fmt.Errorf("parser: unknown format %q", s)
	}
}

// Result holds the outcome of a parse. Malformed input never produces an
// error value; it produces Success=false with populated Errors.
type Result struct {
	Success   bool
	Structure *structure.Node
	Format    Format
	Errors    []string
	Warnings  []string
	Stats     structure.Stats
}

// DirHeuristic decides whether a bare tree/plain entry with no explicit
// trailing separator names a directory. It is deliberately swappable; the
// default is best-effort.
type DirHeuristic func(name string) bool

// Parser parses structure text. The zero value is not usable; use New.
type Parser struct {
	logger    *slog.Logger
	heuristic DirHeuristic
}

// New creates a parser with the default directory heuristic.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, heuristic: DefaultDirHeuristic}
}

// SetDirHeuristic replaces the directory-classification predicate used by the
// tree notation parser.
func (p *Parser) SetDirHeuristic(h DirHeuristic) {
	if h != nil {
		p.heuristic = h
	}
}

// Parse parses input, trying hint first when supplied and falling back to
// auto-detection on failure.
func (p *Parser) Parse(input string, hint Format) Result {
	content := strings.TrimSpace(input)
	if content == "" {
		return Result{Success: false, Errors: []string{"empty input"}}
	}

	if hint != FormatUnknown {
		r := p.parseAs(content, hint)
		if r.Success {
			return r
		}
		auto := p.detectAndParse(content)
		auto.Warnings = append([]string{
			fmt.Sprintf("format hint %s failed, fell back to auto-detection", hint),
		}, auto.Warnings...)
		return auto
	}

	return p.detectAndParse(content)
}

// ParseFile reads path and parses its contents. A .json extension acts as a
// nested-JSON hint when no explicit hint is given.
func (p *Parser) ParseFile(path string, hint Format) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Success: false, Errors: []string{fmt.Sprintf("read %s: %v", path, err)}}
	}
	if hint == FormatUnknown && strings.EqualFold(filepath.Ext(path), ".json") {
		hint = FormatJSONNested
	}
	return p.Parse(string(data), hint)
}

// ParseMap converts an already-decoded mapping into a structure tree. Go maps
// are unordered, so children are inserted in lexicographic key order.
func (p *Parser) ParseMap(m map[string]any) Result {
	root := structure.NewDir()
	var warnings []string
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		normalizeValue(root, k, m[k], &warnings)
	}
	return Result{
		Success:   true,
		Structure: root,
		Format:    FormatJSONNested,
		Warnings:  warnings,
		Stats:     structure.ComputeStats(root),
	}
}

// detectAndParse applies the format-detection priority order: JSON when the
// input starts with { or [, tree art when box-drawing characters appear in
// the first 500 characters, plain paths otherwise.
func (p *Parser) detectAndParse(content string) Result {
	if content[0] == '{' || content[0] == '[' {
		r, ok := p.parseJSON(content)
		if !ok {
			// Input that leads with a brace is meant to be JSON; a parse
			// failure is an error, not a path named "{".
			return r
		}
		p.logger.Debug("parser: detected format", slog.String("format", r.Format.String()))
		return r
	}
	if hasTreeChars(content) {
		p.logger.Debug("parser: detected format", slog.String("format", FormatTree.String()))
		return p.parseTree(content)
	}
	p.logger.Debug("parser: detected format", slog.String("format", FormatPlain.String()))
	return p.parsePlain(content)
}

func (p *Parser) parseAs(content string, hint Format) Result {
	switch hint {
	case FormatJSONNested, FormatJSONFlat:
		r, _ := p.parseJSON(content)
		return r
	case FormatTree:
		return p.parseTree(content)
	default:
		return p.parsePlain(content)
	}
}

// parseJSON parses either JSON notation: an array of path strings (JsonFlat)
// or a nested object (JsonNested). The second result is false when the input
// is not valid JSON of either shape.
func (p *Parser) parseJSON(content string) (Result, bool) {
	if strings.HasPrefix(content, "[") {
		var items []any
		if err := json.Unmarshal([]byte(content), &items); err != nil {
			return Result{Success: false, Errors: []string{fmt.Sprintf("invalid JSON: %v", err)}}, false
		}
		root := structure.NewDir()
		var warnings []string
		paths := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("entry %d: not a path string, skipped", i))
				continue
			}
			paths = append(paths, s)
		}
		foldPaths(root, paths, &warnings)
		return Result{
			Success:   true,
			Structure: root,
			Format:    FormatJSONFlat,
			Warnings:  warnings,
			Stats:     structure.ComputeStats(root),
		}, true
	}

	om := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(content), &om); err != nil {
		return Result{Success: false, Errors: []string{fmt.Sprintf("invalid JSON: %v", err)}}, false
	}
	root := structure.NewDir()
	var warnings []string
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		normalizeValue(root, pair.Key, pair.Value, &warnings)
	}
	return Result{
		Success:   true,
		Structure: root,
		Format:    FormatJSONNested,
		Warnings:  warnings,
		Stats:     structure.ComputeStats(root),
	}, true
}

// normalizeValue inserts one decoded JSON member into dst. Object values
// become directories; null, empty strings, and empty objects become files
// (the nested notation's file convention). Any other scalar is also treated
// as a file, its value discarded.
func normalizeValue(dst *structure.Node, key string, value any, warnings *[]string) {
	name := strings.TrimSpace(key)
	if name == "" {
		return
	}
	switch v := value.(type) {
	case *orderedmap.OrderedMap[string, any]:
		if v.Len() == 0 {
			dst.EnsureFile(name)
			return
		}
		child, converted := dst.EnsureDir(name)
		if converted {
			*warnings = append(*warnings, fmt.Sprintf("%s: file entry upgraded to directory", name))
		}
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			normalizeValue(child, pair.Key, pair.Value, warnings)
		}
	case map[string]any:
		// ParseMap values arrive as plain maps.
		if len(v) == 0 {
			dst.EnsureFile(name)
			return
		}
		child, converted := dst.EnsureDir(name)
		if converted {
			*warnings = append(*warnings, fmt.Sprintf("%s: file entry upgraded to directory", name))
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			normalizeValue(child, k, v[k], warnings)
		}
	default:
		dst.EnsureFile(name)
	}
}

// parsePlain parses one path per line, skipping blanks and #-comments and
// normalising backslashes to forward slashes.
func (p *Parser) parsePlain(content string) Result {
	root := structure.NewDir()
	var warnings []string
	var paths []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	foldPaths(root, paths, &warnings)
	return Result{
		Success:   true,
		Structure: root,
		Format:    FormatPlain,
		Warnings:  warnings,
		Stats:     structure.ComputeStats(root),
	}
}

func hasTreeChars(content string) bool {
	head := content
	if len(head) > 500 {
		head = head[:500]
	}
	return strings.ContainsAny(head, "├└│─|+`-")
}
