package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/eihwaz/internal/cache"
	"github.com/starford/eihwaz/internal/testutil"
)

func newTestScanner(workers int, c *cache.Cache) *Scanner {
	return New(nil, Config{Workers: workers}, c)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestScan_BasicTree(t *testing.T) {
	dir := testutil.WriteFiles(t,
		"src/main.go",
		"src/util.go",
		"docs/index.md",
		"README.md",
	)

	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: true})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}
	if res.Stats.Files != 4 || res.Stats.Directories != 2 {
		t.Errorf("stats = %+v, want 4 files, 2 dirs", res.Stats)
	}

	src, ok := res.Structure.Child("src")
	if !ok || !src.IsDir() || src.Len() != 2 {
		t.Fatal("expected src/ with two files")
	}
	if readme, ok := res.Structure.Child("README.md"); !ok || readme.IsDir() {
		t.Error("expected README.md file")
	}
}

func TestScan_MissingPath(t *testing.T) {
	res := newTestScanner(1, nil).Scan(context.Background(), filepath.Join(t.TempDir(), "absent"), Options{})
	if res.Success {
		t.Fatal("missing path should fail")
	}
}

func TestScan_PathIsFile(t *testing.T) {
	dir := testutil.WriteFiles(t, "only.txt")
	res := newTestScanner(1, nil).Scan(context.Background(), filepath.Join(dir, "only.txt"), Options{})
	if res.Success {
		t.Fatal("scanning a file should fail")
	}
}

func TestScan_HiddenExcludedByDefault(t *testing.T) {
	dir := testutil.WriteFiles(t, ".env", "visible.txt")

	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: true})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}
	if _, ok := res.Structure.Child(".env"); ok {
		t.Error(".env should be excluded without IncludeHidden")
	}
	if res.Stats.SkippedItems != 1 {
		t.Errorf("skipped = %d, want 1", res.Stats.SkippedItems)
	}

	res = newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: true, IncludeHidden: true})
	if _, ok := res.Structure.Child(".env"); !ok {
		t.Error(".env should appear with IncludeHidden")
	}
	if res.Stats.HiddenItems != 1 {
		t.Errorf("hidden = %d, want 1", res.Stats.HiddenItems)
	}
}

func TestScan_DefaultIgnores(t *testing.T) {
	dir := testutil.WriteFiles(t,
		"node_modules/pkg/index.js",
		"app.log",
		"src/ok.go",
	)

	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: true})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}
	if _, ok := res.Structure.Child("node_modules"); ok {
		t.Error("node_modules should be ignored")
	}
	if _, ok := res.Structure.Child("app.log"); ok {
		t.Error("*.log should be ignored")
	}
	if _, ok := res.Structure.Child("src"); !ok {
		t.Error("src should survive")
	}
}

func TestScan_CustomIgnore(t *testing.T) {
	dir := testutil.WriteFiles(t, "keep.txt", "drop.tmp")
	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{
		Recursive:    true,
		CustomIgnore: []string{"*.tmp"},
	})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}
	if _, ok := res.Structure.Child("drop.tmp"); ok {
		t.Error("custom pattern should exclude drop.tmp")
	}
	if _, ok := res.Structure.Child("keep.txt"); !ok {
		t.Error("keep.txt should survive")
	}
}

func TestScan_IgnoreFile(t *testing.T) {
	dir := testutil.WriteFiles(t, "keep.txt", "secret.key")
	writeIgnore := filepath.Join(dir, ".structignore")
	if err := writeFile(writeIgnore, "# comment\n*.key\n"); err != nil {
		t.Fatal(err)
	}

	s := New(nil, Config{Workers: 1, IgnoreFile: ".structignore"}, nil)
	res := s.Scan(context.Background(), dir, Options{Recursive: true})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}
	if _, ok := res.Structure.Child("secret.key"); ok {
		t.Error("*.key from the ignore file should be excluded")
	}
}

func TestScan_NonRecursive(t *testing.T) {
	dir := testutil.WriteFiles(t, "top.txt", "sub/inner.txt")
	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: false})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}

	sub, ok := res.Structure.Child("sub")
	if !ok || !sub.IsDir() {
		t.Fatal("top-level sub/ should be listed")
	}
	if sub.Len() != 0 {
		t.Error("non-recursive scan must not descend")
	}
	if res.Stats.Files != 1 {
		t.Errorf("files = %d, want 1", res.Stats.Files)
	}
}

func TestScan_ParallelMatchesSequential(t *testing.T) {
	dir := testutil.WriteFiles(t,
		"a/one.txt", "a/two.txt",
		"b/c/three.txt", "b/c/d/four.txt",
		"e/five.txt", "six.txt",
	)

	seq := newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: true})
	par := newTestScanner(4, nil).Scan(context.Background(), dir, Options{Recursive: true})
	if !seq.Success || !par.Success {
		t.Fatalf("scans failed: %v %v", seq.Errors, par.Errors)
	}
	if !seq.Structure.Equal(par.Structure) {
		t.Error("parallel and sequential scans should produce equal trees")
	}
	if seq.Stats.Files != par.Stats.Files || seq.Stats.Directories != par.Stats.Directories {
		t.Errorf("stats differ: %+v vs %+v", seq.Stats, par.Stats)
	}
}

func TestScan_CacheRoundTrip(t *testing.T) {
	dir := testutil.WriteFiles(t, "src/main.go", "README.md")
	c := cache.New(nil, 16, time.Hour, nil)
	s := newTestScanner(1, c)
	opts := Options{Recursive: true}

	first := s.Scan(context.Background(), dir, opts)
	if !first.Success || first.FromCache {
		t.Fatalf("first scan: success=%v fromCache=%v", first.Success, first.FromCache)
	}

	second := s.Scan(context.Background(), dir, opts)
	if !second.FromCache {
		t.Fatal("second scan should be served from cache")
	}
	if !first.Structure.Equal(second.Structure) {
		t.Error("cached structure should round-trip")
	}
	if second.Stats.Files != first.Stats.Files {
		t.Errorf("cached stats = %+v, want %+v", second.Stats, first.Stats)
	}
}

func TestScan_CacheKeyedByOptions(t *testing.T) {
	dir := testutil.WriteFiles(t, ".hidden", "shown.txt")
	c := cache.New(nil, 16, time.Hour, nil)
	s := newTestScanner(1, c)

	withHidden := s.Scan(context.Background(), dir, Options{Recursive: true, IncludeHidden: true})
	withoutHidden := s.Scan(context.Background(), dir, Options{Recursive: true})
	if withoutHidden.FromCache {
		t.Fatal("different options must not share a cache entry")
	}
	if withHidden.Stats.Files == withoutHidden.Stats.Files {
		t.Error("hidden toggle should change the result")
	}
}

func TestScan_CacheInvalidatedByNewFile(t *testing.T) {
	dir := testutil.WriteFiles(t, "a.txt")
	c := cache.New(nil, 16, time.Hour, nil)
	s := newTestScanner(1, c)
	opts := Options{Recursive: true}

	s.Scan(context.Background(), dir, opts)

	// Creating a top-level file advances the source mtime.
	time.Sleep(10 * time.Millisecond)
	if err := writeFile(filepath.Join(dir, "b.txt"), "x"); err != nil {
		t.Fatal(err)
	}

	res := s.Scan(context.Background(), dir, opts)
	if res.FromCache {
		t.Fatal("modified tree must not serve a cached result")
	}
	if res.Stats.Files != 2 {
		t.Errorf("files = %d, want 2", res.Stats.Files)
	}
}

func TestScan_InvalidatePath(t *testing.T) {
	dir := testutil.WriteFiles(t, "a.txt")
	c := cache.New(nil, 16, time.Hour, nil)
	s := newTestScanner(1, c)
	opts := Options{Recursive: true}

	s.Scan(context.Background(), dir, opts)
	s.InvalidatePath(dir)

	if res := s.Scan(context.Background(), dir, opts); res.FromCache {
		t.Fatal("invalidated path should rescan")
	}
}

func TestScan_ProjectDetection(t *testing.T) {
	dir := testutil.WriteFiles(t,
		"go.mod",
		"main.go",
		"vendor/dep/dep.go",
	)

	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{
		Recursive:         true,
		DetectProjectType: true,
	})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}
	if res.ProjectType != ProjectGo {
		t.Errorf("project type = %s, want go", res.ProjectType)
	}
	if _, ok := res.Structure.Child("vendor"); ok {
		t.Error("vendor/ should be ignored for Go projects")
	}
}

func TestScan_CancelledContext(t *testing.T) {
	dir := testutil.WriteFiles(t, "a/one.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestScanner(1, nil).Scan(ctx, dir, Options{Recursive: true})
	if res.Success {
		t.Fatal("cancelled scan should fail")
	}
}

func TestScan_MetadataFields(t *testing.T) {
	dir := testutil.WriteFiles(t, "img/logo.png", "note.md")
	res := newTestScanner(1, nil).Scan(context.Background(), dir, Options{Recursive: true})
	if !res.Success {
		t.Fatalf("scan failed: %v", res.Errors)
	}

	byRel := make(map[string]FileMetadata)
	for _, m := range res.Files {
		byRel[m.RelPath] = m
	}

	logo, ok := byRel["img/logo.png"]
	if !ok {
		t.Fatal("expected metadata for img/logo.png")
	}
	if !logo.IsBinary || logo.Extension != ".png" || logo.IsDir {
		t.Errorf("logo metadata = %+v", logo)
	}
	if note := byRel["note.md"]; note.IsBinary {
		t.Error(".md should not classify as binary")
	}
	if img := byRel["img"]; !img.IsDir {
		t.Error("img should be a directory entry")
	}
	if res.Stats.BinaryFiles != 1 {
		t.Errorf("binary files = %d, want 1", res.Stats.BinaryFiles)
	}
}
