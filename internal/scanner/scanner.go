// Package scanner walks real directory trees into structure trees, applying
// ignore patterns and project-type detection, with a directory-level worker
// pool and an mtime-coherent result cache.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/eihwaz/internal/cache"
	"github.com/starford/eihwaz/internal/checksum"
	"github.com/starford/eihwaz/internal/structure"
)

// Options controls one Scan call.
type Options struct {
	// Recursive walks subdirectories; otherwise only the top level is read.
	Recursive bool
	// IncludeHidden keeps dot-prefixed entries.
	IncludeHidden bool
	// FollowSymlinks descends into symlinked directories.
	FollowSymlinks bool
	// DetectProjectType scores marker files and applies the detected
	// type's extra ignore patterns.
	DetectProjectType bool
	// CustomIgnore adds caller-supplied ignore patterns.
	CustomIgnore []string
}

// Stats aggregates scan counters.
type Stats struct {
	Files        int   `json:"files"`
	Directories  int   `json:"directories"`
	TotalSize    int64 `json:"total_size"`
	BinaryFiles  int   `json:"binary_files"`
	HiddenItems  int   `json:"hidden_items"`
	SkippedItems int   `json:"skipped_items"`
	DurationMS   int64 `json:"duration_ms"`
}

// Result is the product of one Scan call. The scanner keeps no reference to
// it after returning; only a serialized copy lives in the cache.
type Result struct {
	Success     bool            `json:"success"`
	RootPath    string          `json:"root_path"`
	Structure   *structure.Node `json:"structure"`
	Files       []FileMetadata  `json:"files"`
	ProjectType ProjectType     `json:"project_type"`
	Markers     []string        `json:"markers,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	Stats       Stats           `json:"stats"`

	// FromCache marks a result served from the cache rather than a walk.
	FromCache bool `json:"-"`
}

// ProgressFunc receives (completed, total, name) as directories finish.
// The total is unknown while a scan is in flight and is reported as 0.
// Invocation order is completion order.
type ProgressFunc func(completed, total int, name string)

// Config holds scanner construction knobs.
type Config struct {
	// Workers bounds the directory-level worker pool; <= 0 selects the
	// number of CPUs. 1 disables parallelism.
	Workers int
	// IgnoreFile is the name of an optional root-level ignore file.
	IgnoreFile string
	// IgnorePatterns extends the built-in defaults for every scan.
	IgnorePatterns []string
}

// Scanner walks directories. It is read-only with respect to the
// filesystem; its only mutable state is the injected cache.
type Scanner struct {
	logger   *slog.Logger
	workers  int
	cache    *cache.Cache
	detector *Detector

	ignoreFile string
	extra      []string
	progress   ProgressFunc
}

// New creates a scanner. c may be nil to disable caching.
func New(logger *slog.Logger, cfg Config, c *cache.Cache) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{
		logger:     logger,
		workers:    workers,
		cache:      c,
		detector:   NewDetector(),
		ignoreFile: cfg.IgnoreFile,
		extra:      cfg.IgnorePatterns,
	}
}

// SetProgress installs a progress callback. The callback may be invoked
// from multiple workers and must be safe for concurrent use.
func (s *Scanner) SetProgress(fn ProgressFunc) {
	s.progress = fn
}

// dirTask hands a worker one directory plus the tree node it exclusively
// owns; no two workers ever write the same node.
type dirTask struct {
	abs  string
	rel  string
	node *structure.Node
}

// dirOutput is a worker's local aggregate, merged single-threaded after
// each frontier round.
type dirOutput struct {
	metas    []FileMetadata
	subdirs  []dirTask
	warnings []string
	skipped  int
}

// Scan walks path and returns its structure plus per-entry metadata.
// Permission errors below the root become warnings; only an unreadable root
// is fatal.
func (s *Scanner) Scan(ctx context.Context, path string, opts Options) Result {
	start := time.Now()

	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Success: false, Errors: []string{fmt.Sprintf("resolve path: %v", err)}}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Result{Success: false, RootPath: abs, Errors: []string{fmt.Sprintf("path does not exist: %s", abs)}}
	}
	if !info.IsDir() {
		return Result{Success: false, RootPath: abs, Errors: []string{fmt.Sprintf("path is not a directory: %s", abs)}}
	}

	key := s.cacheKey(abs, opts)
	srcMtime := sourceMtime(abs)

	if s.cache != nil {
		if data, ok := s.cache.Get(key, srcMtime); ok {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				cached.FromCache = true
				s.logger.Debug("scanner: cache hit", slog.String("path", abs))
				return cached
			}
			s.cache.Delete(key)
		}
	}

	res := Result{Success: true, RootPath: abs, ProjectType: ProjectUnknown}

	ignore := s.buildPatternSet(abs, opts, &res)

	root := structure.NewDir()
	res.Structure = root

	task := dirTask{abs: abs, rel: "", node: root}
	switch {
	case opts.Recursive && s.workers > 1:
		err = s.walkParallel(ctx, task, ignore, opts, &res)
	case opts.Recursive:
		err = s.walkSequential(ctx, task, ignore, opts, &res)
	default:
		err = s.walkSingleLevel(task, ignore, opts, &res)
	}
	if err != nil {
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		res.Stats.DurationMS = time.Since(start).Milliseconds()
		return res
	}

	res.Stats.DurationMS = time.Since(start).Milliseconds()

	if s.cache != nil {
		if data, err := json.Marshal(&res); err == nil {
			s.cache.Set(key, data, sourceMtime(abs))
		} else {
			s.logger.Debug("scanner: cache encode failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Debug("scanner: finished",
		slog.String("path", abs),
		slog.Int("files", res.Stats.Files),
		slog.Int("directories", res.Stats.Directories),
		slog.Int64("duration_ms", res.Stats.DurationMS))
	return res
}

// InvalidatePath drops every cached result for path, regardless of the
// options it was scanned with.
func (s *Scanner) InvalidatePath(path string) {
	if s.cache == nil {
		return
	}
	// Option permutations share the path prefix in the key input but not
	// in the digest, so the cache cannot match by path; clearing is the
	// conservative choice and scans repopulate cheaply.
	s.cache.Clear()
}

// cacheKey digests the scan identity: path, traversal options, and the
// caller-level ignore patterns in canonical order.
func (s *Scanner) cacheKey(abs string, opts Options) string {
	patterns := sortedPatterns(DefaultIgnorePatterns, s.extra, opts.CustomIgnore)
	return checksum.Key(
		abs,
		strconv.FormatBool(opts.Recursive),
		strconv.FormatBool(opts.IncludeHidden),
		strings.Join(patterns, ","),
	)
}

// buildPatternSet assembles defaults ∪ constructor patterns ∪ call patterns
// ∪ root ignore file ∪ detected-project patterns, and records the detected
// type on res.
func (s *Scanner) buildPatternSet(abs string, opts Options, res *Result) *PatternSet {
	lists := [][]string{DefaultIgnorePatterns, s.extra, opts.CustomIgnore}

	if s.ignoreFile != "" {
		ignorePath := filepath.Join(abs, s.ignoreFile)
		if _, err := os.Stat(ignorePath); err == nil {
			patterns, err := LoadIgnoreFile(ignorePath)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("ignore file: %v", err))
			} else {
				lists = append(lists, patterns)
			}
		}
	}

	if opts.DetectProjectType {
		pt, markers := s.detector.Detect(abs)
		res.ProjectType = pt
		res.Markers = markers
		if pt != ProjectUnknown {
			s.logger.Debug("scanner: detected project type", slog.String("type", string(pt)))
			lists = append(lists, IgnorePatternsFor(pt))
		}
	}

	return NewPatternSet(lists...)
}

// walkParallel expands the tree frontier round by round: each round's
// directories are listed concurrently by a bounded pool into per-worker
// local aggregates, which are merged single-threaded after the join. No
// lock guards the tree because each worker owns its subtree node.
func (s *Scanner) walkParallel(ctx context.Context, rootTask dirTask, ignore *PatternSet, opts Options, res *Result) error {
	frontier := []dirTask{rootTask}
	completed := 0
	first := true

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan canceled: %w", err)
		}

		outputs := make([]dirOutput, len(frontier))
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, t := range frontier {
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				out, err := s.listDir(t, ignore, opts)
				if err != nil {
					if t.rel == "" {
						return err
					}
					out.warnings = append(out.warnings, err.Error())
				}
				outputs[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if first {
				return err
			}
			return fmt.Errorf("scan canceled: %w", err)
		}
		first = false

		var next []dirTask
		for i, out := range outputs {
			s.merge(out, res)
			next = append(next, out.subdirs...)
			completed++
			if s.progress != nil {
				s.progress(completed, 0, filepath.Base(frontier[i].abs))
			}
		}
		frontier = next
	}
	return nil
}

// walkSequential is the single-worker depth-first walk.
func (s *Scanner) walkSequential(ctx context.Context, t dirTask, ignore *PatternSet, opts Options, res *Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan canceled: %w", err)
	}

	out, err := s.listDir(t, ignore, opts)
	if err != nil {
		if t.rel == "" {
			return err
		}
		res.Warnings = append(res.Warnings, err.Error())
		return nil
	}
	s.merge(out, res)
	if s.progress != nil {
		s.progress(res.Stats.Directories+res.Stats.Files, 0, filepath.Base(t.abs))
	}

	for _, sub := range out.subdirs {
		if err := s.walkSequential(ctx, sub, ignore, opts, res); err != nil {
			return err
		}
	}
	return nil
}

// walkSingleLevel reads only the top level.
func (s *Scanner) walkSingleLevel(t dirTask, ignore *PatternSet, opts Options, res *Result) error {
	out, err := s.listDir(t, ignore, opts)
	if err != nil {
		return err
	}
	s.merge(out, res)
	return nil
}

// listDir lists one directory and classifies its entries into the node the
// task owns. It returns an error only when the directory itself cannot be
// read; callers decide whether that is fatal (the scan root) or a warning.
func (s *Scanner) listDir(t dirTask, ignore *PatternSet, opts Options) (dirOutput, error) {
	var out dirOutput

	entries, err := os.ReadDir(t.abs)
	if err != nil {
		if os.IsPermission(err) {
			return out, fmt.Errorf("permission denied: %s", t.abs)
		}
		return out, fmt.Errorf("read directory %s: %v", t.abs, err)
	}

	// Directories first, then case-insensitive by name, so structures and
	// renderings come out stable.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	for _, entry := range entries {
		name := entry.Name()
		rel := name
		if t.rel != "" {
			rel = t.rel + "/" + name
		}
		abs := filepath.Join(t.abs, name)

		isSymlink := entry.Type()&fs.ModeSymlink != 0
		if isSymlink && !opts.FollowSymlinks {
			continue
		}

		isDir := entry.IsDir()
		var info fs.FileInfo
		if isSymlink {
			// Resolve the target so a symlinked directory is walked.
			resolved, statErr := os.Stat(abs)
			if statErr != nil {
				out.warnings = append(out.warnings, fmt.Sprintf("broken symlink: %s", rel))
				continue
			}
			info = resolved
			isDir = resolved.IsDir()
		} else {
			var infoErr error
			info, infoErr = entry.Info()
			if infoErr != nil {
				out.warnings = append(out.warnings, fmt.Sprintf("stat %s: %v", rel, infoErr))
				continue
			}
		}

		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			out.skipped++
			continue
		}
		if ignore.Match(name, rel, isDir) {
			out.skipped++
			continue
		}

		out.metas = append(out.metas, newFileMetadata(abs, rel, isDir, info))

		if isDir {
			child, _ := t.node.EnsureDir(name)
			if opts.Recursive {
				out.subdirs = append(out.subdirs, dirTask{abs: abs, rel: rel, node: child})
			}
		} else {
			t.node.EnsureFile(name)
		}
	}
	return out, nil
}

// merge folds a worker's local aggregate into the shared result. Callers
// serialize merges; no lock is needed.
func (s *Scanner) merge(out dirOutput, res *Result) {
	for _, m := range out.metas {
		res.Files = append(res.Files, m)
		if m.IsDir {
			res.Stats.Directories++
		} else {
			res.Stats.Files++
			res.Stats.TotalSize += m.Size
			if m.IsBinary {
				res.Stats.BinaryFiles++
			}
		}
		if m.IsHidden {
			res.Stats.HiddenItems++
		}
	}
	res.Warnings = append(res.Warnings, out.warnings...)
	res.Stats.SkippedItems += out.skipped
}

// sourceMtime returns the latest modification time among the directory
// itself and its immediate entries. Directory mtimes alone miss in-place
// file edits, which would defeat the cache-coherence guarantee for the
// common case of touching a top-level file.
func sourceMtime(abs string) time.Time {
	latest := time.Time{}
	if info, err := os.Stat(abs); err == nil {
		latest = info.ModTime()
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return latest
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}
