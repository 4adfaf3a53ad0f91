// Package builder materializes structure trees onto a filesystem with
// force/dry-run modes, bounded parallel file creation, and rollback of
// everything created by a failed invocation.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/eihwaz/internal/structure"
)

// OpKind names a single build operation.
type OpKind string

// Build operation kinds.
const (
	OpCreateDir  OpKind = "create_dir"
	OpCreateFile OpKind = "create_file"
	OpSkip       OpKind = "skip"
	OpOverwrite  OpKind = "overwrite"
)

// Operation records one item's outcome (or prediction, in dry-run mode).
type Operation struct {
	Kind    OpKind `json:"kind"`
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Stats aggregates build counters.
type Stats struct {
	DirectoriesCreated int   `json:"directories_created"`
	FilesCreated       int   `json:"files_created"`
	ItemsSkipped       int   `json:"items_skipped"`
	ItemsOverwritten   int   `json:"items_overwritten"`
	Errors             int   `json:"errors"`
	DurationMS         int64 `json:"duration_ms"`
}

// Result aggregates the operations of one Build call. It is mutated
// incrementally during the build and frozen once returned.
type Result struct {
	Success    bool        `json:"success"`
	TargetRoot string      `json:"target_root"`
	Operations []Operation `json:"operations"`
	Errors     []string    `json:"errors,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Stats      Stats       `json:"stats"`

	// CreatedPaths lists every path this call created, in creation order.
	// It doubles as the rollback log.
	CreatedPaths []string `json:"created_paths,omitempty"`
}

// ProgressFunc receives (completed, total, itemName) after each item
// finishes. For the parallel file phase, invocation order is completion
// order, not traversal order.
type ProgressFunc func(completed, total int, name string)

// Options controls one Build call.
type Options struct {
	// Force overwrites existing entries instead of skipping them.
	Force bool
	// DryRun records predicted operations without touching the filesystem.
	DryRun bool
	// CreateRoot creates the target root when it does not exist. When
	// false, a missing root fails the build instead.
	CreateRoot bool
}

// Builder creates directories and files from structure trees. A Builder is
// stateless across calls; the rollback log belongs to a single Build call.
type Builder struct {
	logger            *slog.Logger
	workers           int
	parallelThreshold int
	progress          ProgressFunc
}

// New creates a builder. workers <= 0 selects the number of CPUs.
func New(logger *slog.Logger, workers int) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Builder{
		logger:            logger,
		workers:           workers,
		parallelThreshold: 20,
	}
}

// SetProgress installs a progress callback.
func (b *Builder) SetProgress(fn ProgressFunc) {
	b.progress = fn
}

// item is one flattened tree entry; directories always precede their
// descendants in the flattened order.
type item struct {
	name    string
	rel     string
	abs     string
	dir     bool
	existed bool
}

// Build materializes root under targetRoot. Per-item failures are recorded
// and non-fatal; an orchestration failure (root creation, cancellation,
// panic) rolls back every path created by this call and returns
// Success=false.
func (b *Builder) Build(ctx context.Context, root *structure.Node, targetRoot string, opts Options) Result {
	start := time.Now()

	abs, err := filepath.Abs(targetRoot)
	if err != nil {
		return Result{Success: false, TargetRoot: targetRoot,
			Errors: []string{fmt.Sprintf("resolve target root: %v", err)}}
	}

	res := Result{Success: true, TargetRoot: abs}
	defer func() {
		res.Stats.DurationMS = time.Since(start).Milliseconds()
	}()

	if info, statErr := os.Stat(abs); statErr == nil {
		if !info.IsDir() {
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("target root exists but is not a directory: %s", abs))
			return res
		}
	} else {
		if !opts.CreateRoot {
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("target root does not exist: %s", abs))
			return res
		}
		if opts.DryRun {
			res.Operations = append(res.Operations, Operation{Kind: OpCreateDir, Path: abs, Success: true})
			res.Stats.DirectoriesCreated++
		} else {
			if mkErr := os.MkdirAll(abs, 0o755); mkErr != nil {
				res.Success = false
				res.Errors = append(res.Errors, fmt.Sprintf("create target root: %v", mkErr))
				return res
			}
			res.CreatedPaths = append(res.CreatedPaths, abs)
			res.Operations = append(res.Operations, Operation{Kind: OpCreateDir, Path: abs, Success: true})
			res.Stats.DirectoriesCreated++
		}
	}

	items := flatten(root, abs)

	if opts.DryRun {
		b.preview(items, opts.Force, &res)
		return res
	}

	if execErr := b.execute(ctx, items, opts.Force, &res); execErr != nil {
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("build failed: %v", execErr))
		b.rollback(&res)
	}

	return res
}

// flatten produces a pre-order item list and snapshots prior existence, so
// overwrite classification is stable even after a forced parent directory
// has been replaced.
func flatten(root *structure.Node, targetAbs string) []item {
	var items []item
	var walk func(dir *structure.Node, rel string)
	walk = func(dir *structure.Node, rel string) {
		dir.Each(func(name string, child *structure.Node) {
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}
			abs := filepath.Join(targetAbs, filepath.FromSlash(childRel))
			_, statErr := os.Lstat(abs)
			items = append(items, item{
				name:    name,
				rel:     childRel,
				abs:     abs,
				dir:     child.IsDir(),
				existed: statErr == nil,
			})
			if child.IsDir() {
				walk(child, childRel)
			}
		})
	}
	walk(root, "")
	return items
}

// preview runs the identical classification logic with no filesystem
// mutation; every operation is recorded as a successful prediction.
func (b *Builder) preview(items []item, force bool, res *Result) {
	total := len(items)
	for i, it := range items {
		op := Operation{Path: it.abs, Success: true}
		switch {
		case it.existed && !force:
			op.Kind = OpSkip
			res.Stats.ItemsSkipped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("would skip (exists): %s", it.rel))
		case it.existed:
			op.Kind = OpOverwrite
			res.Stats.ItemsOverwritten++
		case it.dir:
			op.Kind = OpCreateDir
			res.Stats.DirectoriesCreated++
		default:
			op.Kind = OpCreateFile
			res.Stats.FilesCreated++
		}
		res.Operations = append(res.Operations, op)
		if b.progress != nil {
			b.progress(i+1, total, it.name)
		}
	}
}

// execute creates all items. Large trees run in two phases: directories
// strictly sequentially in traversal order (parents must exist before
// children), then files in parallel across a bounded pool. The returned
// error is an orchestration failure and triggers rollback in the caller.
func (b *Builder) execute(ctx context.Context, items []item, force bool, res *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	total := len(items)
	completed := 0
	var mu sync.Mutex

	record := func(it item, op Operation, created bool) {
		mu.Lock()
		defer mu.Unlock()
		res.Operations = append(res.Operations, op)
		if created {
			res.CreatedPaths = append(res.CreatedPaths, it.abs)
		}
		if !op.Success {
			res.Stats.Errors++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", it.rel, op.Error))
		} else {
			switch op.Kind {
			case OpCreateDir:
				res.Stats.DirectoriesCreated++
			case OpCreateFile:
				res.Stats.FilesCreated++
			case OpSkip:
				res.Stats.ItemsSkipped++
			case OpOverwrite:
				res.Stats.ItemsOverwritten++
			}
		}
		completed++
		if b.progress != nil {
			b.progress(completed, total, it.name)
		}
	}

	parallel := total > b.parallelThreshold && b.workers > 1
	if !parallel {
		for _, it := range items {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			op, created := b.processItem(it, force)
			record(it, op, created)
		}
		return nil
	}

	// Phase one: directories, in traversal order.
	var files []item
	for _, it := range items {
		if !it.dir {
			files = append(files, it)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		op, created := b.processItem(it, force)
		record(it, op, created)
	}

	// Phase two: files, in parallel.
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, it := range files {
		g.Go(func() error {
			if ctxErr := gCtx.Err(); ctxErr != nil {
				return ctxErr
			}
			op, created := b.processItem(it, force)
			record(it, op, created)
			return nil
		})
	}
	return g.Wait()
}

// processItem creates, skips, or overwrites a single entry. Filesystem
// errors are captured in the returned operation, never raised.
func (b *Builder) processItem(it item, force bool) (Operation, bool) {
	op := Operation{Path: it.abs}
	createKind := OpCreateFile
	if it.dir {
		createKind = OpCreateDir
	}

	info, statErr := os.Lstat(it.abs)
	exists := statErr == nil

	if exists && !force {
		op.Kind = OpSkip
		op.Success = true
		return op, false
	}

	if exists {
		op.Kind = OpOverwrite
		// An existing directory wanted as a directory is kept in place;
		// removing it would destroy descendants that this same build is
		// about to classify.
		if !(it.dir && info.IsDir()) {
			if rmErr := os.RemoveAll(it.abs); rmErr != nil {
				op.Error = fmt.Sprintf("remove existing: %v", rmErr)
				return op, false
			}
			if mkErr := b.create(it); mkErr != nil {
				op.Error = mkErr.Error()
				return op, false
			}
			op.Success = true
			return op, true
		}
		op.Success = true
		return op, false
	}

	op.Kind = createKind
	if mkErr := b.create(it); mkErr != nil {
		op.Error = mkErr.Error()
		return op, false
	}
	op.Success = true
	return op, true
}

func (b *Builder) create(it item) error {
	if it.dir {
		if err := os.MkdirAll(it.abs, 0o755); err != nil {
			return fmt.Errorf("create directory: %v", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(it.abs), 0o755); err != nil {
		return fmt.Errorf("create parent: %v", err)
	}
	f, err := os.Create(it.abs)
	if err != nil {
		return fmt.Errorf("create file: %v", err)
	}
	return f.Close()
}

// rollback removes every path created by this call in reverse creation
// order (files before directories) and reports failures as warnings.
func (b *Builder) rollback(res *Result) {
	b.logger.Warn("builder: rolling back created paths",
		slog.Int("count", len(res.CreatedPaths)))

	for i := len(res.CreatedPaths) - 1; i >= 0; i-- {
		p := res.CreatedPaths[i]
		if err := os.RemoveAll(p); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rollback failed for %s: %v", p, err))
		}
	}
}
