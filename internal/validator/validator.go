// Package validator checks structure trees for cross-platform name and path
// legality, and optionally for conflicts against an existing target root.
package validator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/eihwaz/internal/structure"
)

// Severity classifies a validation issue. Only Error and Critical block
// validity; Warning and Info never do.
type Severity int

// Issue severities, least severe first.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Issue is a single validation finding.
type Issue struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Path       string   `json:"path,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Counts aggregates per-validation statistics.
type Counts struct {
	Items       int `json:"items"`
	Files       int `json:"files"`
	Directories int `json:"directories"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
}

// Result aggregates the issues of one Validate call.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
	Counts Counts  `json:"counts"`
}

// Errors returns the Error- and Critical-severity issues.
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity >= SeverityError {
			out = append(out, is)
		}
	}
	return out
}

// Warnings returns the Warning-severity issues.
func (r *Result) Warnings() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityWarning {
			out = append(out, is)
		}
	}
	return out
}

func (r *Result) add(sev Severity, message, path, suggestion string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Message: message, Path: path, Suggestion: suggestion})
	switch {
	case sev >= SeverityError:
		r.Counts.Errors++
		r.Valid = false
	case sev == SeverityWarning:
		r.Counts.Warnings++
	}
}

// Platform selects which platform's legality rules apply.
type Platform int

// Validation platforms. PlatformAny applies the union of both rule sets so a
// structure that passes is portable.
const (
	PlatformAny Platform = iota
	PlatformWindows
	PlatformPOSIX
)

// String returns the platform name.
func (p Platform) String() string {
	switch p {
	case PlatformWindows:
		return "windows"
	case PlatformPOSIX:
		return "posix"
	default:
		return "any"
	}
}

// ParsePlatform maps a platform name (as accepted on the CLI) to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "all":
		return PlatformAny, nil
	case "windows":
		return PlatformWindows, nil
	case "posix", "unix", "linux":
		return PlatformPOSIX, nil
	default:
		return PlatformAny, fmt.Errorf("validator: unknown platform %q", s)
	}
}

func (p Platform) windowsRules() bool { return p != PlatformPOSIX }
func (p Platform) posixRules() bool   { return p != PlatformWindows }

// Characters illegal in names per platform. NUL is illegal everywhere.
const (
	windowsInvalidChars = `<>:"|?*` + "\x00"
	posixInvalidChars   = "/\x00"
)

// Reserved device names on Windows-like targets, compared case-insensitively
// and ignoring any extension.
var windowsReservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Options bound the checks applied by a Validator.
type Options struct {
	MaxDepth      int
	MaxNameLength int
	MaxPathLength int
	Platform      Platform
}

// DefaultOptions returns the conventional limits: depth 50, name length 255,
// path length 260, portable platform rules.
func DefaultOptions() Options {
	return Options{
		MaxDepth:      50,
		MaxNameLength: 255,
		MaxPathLength: 260,
		Platform:      PlatformAny,
	}
}

// Validator walks structure trees and reports legality issues. It never
// mutates the tree or the filesystem.
type Validator struct {
	logger *slog.Logger
	opts   Options
}

// New creates a validator. Zero fields in opts fall back to defaults.
func New(logger *slog.Logger, opts Options) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = def.MaxNameLength
	}
	if opts.MaxPathLength <= 0 {
		opts.MaxPathLength = def.MaxPathLength
	}
	return &Validator{logger: logger, opts: opts}
}

// Validate checks root and, when targetRoot is non-empty, reads the target
// filesystem for existing-entry conflicts.
func (v *Validator) Validate(root *structure.Node, targetRoot string) Result {
	res := Result{Valid: true}

	if root == nil || root.Len() == 0 {
		res.add(SeverityError, "empty structure", "", "provide at least one file or directory")
		return res
	}

	seen := make(map[string]struct{})
	v.validateDir(root, "", 0, targetRoot, seen, &res)

	v.logger.Debug("validator: finished",
		slog.Int("items", res.Counts.Items),
		slog.Int("errors", res.Counts.Errors),
		slog.Int("warnings", res.Counts.Warnings))
	return res
}

func (v *Validator) validateDir(dir *structure.Node, curPath string, depth int, targetRoot string, seen map[string]struct{}, res *Result) {
	if depth > v.opts.MaxDepth {
		res.add(SeverityError,
			fmt.Sprintf("maximum depth (%d) exceeded", v.opts.MaxDepth),
			curPath, "reduce nesting level")
		return
	}

	dir.Each(func(name string, child *structure.Node) {
		fullPath := name
		if curPath != "" {
			fullPath = curPath + "/" + name
		}

		res.Counts.Items++
		if child.IsDir() {
			res.Counts.Directories++
		} else {
			res.Counts.Files++
		}

		v.validateName(name, fullPath, res)

		// Case-folded duplicate detection: the mapping prevents exact
		// same-level duplicates, but case-insensitive targets do not.
		key := fullPath
		if v.opts.Platform.windowsRules() {
			key = strings.ToLower(fullPath)
		}
		if _, dup := seen[key]; dup {
			res.add(SeverityError, "duplicate path detected", fullPath, "remove duplicate entries")
		} else {
			seen[key] = struct{}{}
		}

		if len(fullPath) > v.opts.MaxPathLength {
			res.add(SeverityError,
				fmt.Sprintf("path exceeds maximum length (%d)", v.opts.MaxPathLength),
				fullPath, "shorten path by renaming directories")
		}

		if targetRoot != "" {
			v.checkConflict(child, fullPath, targetRoot, res)
		}

		if child.IsDir() && child.Len() > 0 {
			v.validateDir(child, fullPath, depth+1, targetRoot, seen, res)
		}
	})
}

func (v *Validator) validateName(name, path string, res *Result) {
	if strings.TrimSpace(name) == "" {
		res.add(SeverityError, "empty name", path, "provide a valid name")
		return
	}

	if len(name) > v.opts.MaxNameLength {
		res.add(SeverityError,
			fmt.Sprintf("name exceeds maximum length (%d)", v.opts.MaxNameLength),
			path, "shorten the name")
	}

	var invalid []rune
	if v.opts.Platform.windowsRules() {
		invalid = append(invalid, findAny(name, windowsInvalidChars)...)
	}
	if v.opts.Platform.posixRules() {
		invalid = append(invalid, findAny(name, posixInvalidChars)...)
	}
	if len(invalid) > 0 {
		res.add(SeverityError,
			fmt.Sprintf("invalid characters: %q", dedupRunes(invalid)),
			path, "remove the offending characters")
	}

	if v.opts.Platform.windowsRules() {
		base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
		if _, reserved := windowsReservedNames[base]; reserved {
			res.add(SeverityError,
				fmt.Sprintf("reserved name on Windows: %s", base),
				path, "use a different name")
		}
	}

	if name != strings.TrimSpace(name) {
		res.add(SeverityWarning, "name has leading or trailing whitespace", path, "remove the whitespace")
	}
	if strings.HasSuffix(name, ".") && !strings.HasPrefix(name, ".") {
		res.add(SeverityWarning, "name ends with a dot", path, "remove the trailing dot")
	}

	if name == "." || name == ".." {
		res.add(SeverityError, "invalid directory reference", path, "remove '.' or '..' entries")
	}

	if strings.HasPrefix(name, ".") && len(name) > 1 {
		res.add(SeverityInfo, "hidden file or directory", path, "")
	}
}

// checkConflict compares one entry against the target filesystem. A type
// mismatch is an error; a type match means the build would skip or overwrite.
func (v *Validator) checkConflict(node *structure.Node, relPath, targetRoot string, res *Result) {
	target := filepath.Join(targetRoot, filepath.FromSlash(relPath))
	info, err := os.Stat(target)
	if err != nil {
		return
	}
	wantDir := node.IsDir()
	if wantDir != info.IsDir() {
		res.add(SeverityError,
			fmt.Sprintf("type conflict: expecting %s, found %s", kindName(wantDir), kindName(info.IsDir())),
			relPath, "use force mode or choose a different target")
	} else {
		res.add(SeverityWarning,
			fmt.Sprintf("%s already exists", kindName(wantDir)),
			relPath, "use force mode to overwrite")
	}
}

func kindName(dir bool) string {
	if dir {
		return "directory"
	}
	return "file"
}

func findAny(s, chars string) []rune {
	var out []rune
	for _, r := range s {
		if strings.ContainsRune(chars, r) {
			out = append(out, r)
		}
	}
	return out
}

func dedupRunes(rs []rune) string {
	seen := make(map[rune]struct{}, len(rs))
	var b strings.Builder
	for _, r := range rs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		b.WriteRune(r)
	}
	return b.String()
}
