package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/eihwaz/internal/structure"
	"github.com/starford/eihwaz/internal/testutil"
)

func newTestValidator(opts Options) *Validator {
	return New(nil, opts)
}

func hasIssue(res Result, sev Severity, substr string) bool {
	for _, is := range res.Issues {
		if is.Severity == sev && strings.Contains(is.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidate_EmptyStructure(t *testing.T) {
	v := newTestValidator(Options{})
	for _, root := range []*structure.Node{nil, structure.NewDir()} {
		res := v.Validate(root, "")
		if res.Valid {
			t.Error("empty structure should be invalid")
		}
		if !hasIssue(res, SeverityError, "empty structure") {
			t.Errorf("issues = %v", res.Issues)
		}
	}
}

func TestValidate_CleanStructure(t *testing.T) {
	root := testutil.Tree(t, "src/main.go", "src/util.go", "docs/", "README.md")
	res := newTestValidator(Options{}).Validate(root, "")
	if !res.Valid {
		t.Fatalf("clean structure should be valid: %v", res.Issues)
	}
	if res.Counts.Files != 3 || res.Counts.Directories != 2 {
		t.Errorf("counts = %+v", res.Counts)
	}
}

func TestValidate_InvalidCharacters(t *testing.T) {
	root := testutil.Tree(t, `bad<name>.txt`)
	res := newTestValidator(Options{}).Validate(root, "")
	if res.Valid {
		t.Fatal("angle brackets should be invalid under portable rules")
	}
	if !hasIssue(res, SeverityError, "invalid characters") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_PlatformSpecificCharacters(t *testing.T) {
	root := testutil.Tree(t, "report:final.txt")

	if res := newTestValidator(Options{Platform: PlatformPOSIX}).Validate(root, ""); !res.Valid {
		t.Errorf("colon is legal on POSIX: %v", res.Issues)
	}
	if res := newTestValidator(Options{Platform: PlatformWindows}).Validate(root, ""); res.Valid {
		t.Error("colon is illegal on Windows")
	}
	if res := newTestValidator(Options{Platform: PlatformAny}).Validate(root, ""); res.Valid {
		t.Error("portable rules apply the union, colon must fail")
	}
}

func TestValidate_ReservedNames(t *testing.T) {
	v := newTestValidator(Options{})
	for _, name := range []string{"CON", "con.txt", "Aux.log", "LPT1"} {
		res := v.Validate(testutil.Tree(t, name), "")
		if !hasIssue(res, SeverityError, "reserved name") {
			t.Errorf("%s: expected reserved-name error, got %v", name, res.Issues)
		}
	}
	// Reserved base names do not apply under pure POSIX rules.
	res := newTestValidator(Options{Platform: PlatformPOSIX}).Validate(testutil.Tree(t, "CON"), "")
	if !res.Valid {
		t.Errorf("CON is fine on POSIX: %v", res.Issues)
	}
}

func TestValidate_MaxDepth(t *testing.T) {
	root := testutil.Tree(t, "a/b/c/d/leaf.txt")
	res := newTestValidator(Options{MaxDepth: 2}).Validate(root, "")
	if res.Valid {
		t.Fatal("nesting past MaxDepth should be invalid")
	}
	if !hasIssue(res, SeverityError, "maximum depth") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_MaxNameLength(t *testing.T) {
	long := strings.Repeat("x", 30) + ".txt"
	res := newTestValidator(Options{MaxNameLength: 20}).Validate(testutil.Tree(t, long), "")
	if !hasIssue(res, SeverityError, "name exceeds maximum length") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_CaseFoldedDuplicates(t *testing.T) {
	root := structure.NewDir()
	root.EnsureFile("README.md")
	root.EnsureFile("readme.md")

	res := newTestValidator(Options{}).Validate(root, "")
	if !hasIssue(res, SeverityError, "duplicate path") {
		t.Errorf("portable rules should flag case-folded duplicates: %v", res.Issues)
	}

	res = newTestValidator(Options{Platform: PlatformPOSIX}).Validate(root, "")
	if hasIssue(res, SeverityError, "duplicate path") {
		t.Errorf("POSIX keeps them distinct: %v", res.Issues)
	}
}

func TestValidate_WarningsDoNotInvalidate(t *testing.T) {
	root := testutil.Tree(t, "draft.")
	res := newTestValidator(Options{}).Validate(root, "")
	if !res.Valid {
		t.Fatalf("trailing dot is a warning, not an error: %v", res.Issues)
	}
	if !hasIssue(res, SeverityWarning, "ends with a dot") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_HiddenEntriesInfo(t *testing.T) {
	root := testutil.Tree(t, ".env")
	res := newTestValidator(Options{}).Validate(root, "")
	if !res.Valid {
		t.Fatalf("hidden entries are informational: %v", res.Issues)
	}
	if !hasIssue(res, SeverityInfo, "hidden") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_DotReferences(t *testing.T) {
	root := structure.NewDir()
	root.EnsureFile("..")
	res := newTestValidator(Options{}).Validate(root, "")
	if !hasIssue(res, SeverityError, "invalid directory reference") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_TargetConflicts(t *testing.T) {
	target := t.TempDir()
	if err := os.MkdirAll(filepath.Join(target, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// src exists as a dir but the structure wants a file: type conflict.
	root := structure.NewDir()
	root.EnsureFile("src")
	root.EnsureFile("README.md")

	res := newTestValidator(Options{}).Validate(root, target)
	if !hasIssue(res, SeverityError, "type conflict") {
		t.Errorf("issues = %v", res.Issues)
	}
	if !hasIssue(res, SeverityWarning, "already exists") {
		t.Errorf("issues = %v", res.Issues)
	}
}

func TestValidate_NoTargetNoConflictChecks(t *testing.T) {
	root := testutil.Tree(t, "README.md")
	res := newTestValidator(Options{}).Validate(root, "")
	if hasIssue(res, SeverityWarning, "already exists") {
		t.Error("conflict checks must be off without a target root")
	}
}

func TestResult_ErrorsAndWarnings(t *testing.T) {
	root := testutil.Tree(t, "bad<.txt", "draft.")
	res := newTestValidator(Options{}).Validate(root, "")
	if len(res.Errors()) == 0 {
		t.Error("expected at least one error")
	}
	if len(res.Warnings()) == 0 {
		t.Error("expected at least one warning")
	}
	for _, is := range res.Errors() {
		if is.Severity < SeverityError {
			t.Errorf("Errors() returned %v", is)
		}
	}
}

func TestParsePlatform_Roundtrip(t *testing.T) {
	for in, want := range map[string]Platform{
		"":        PlatformAny,
		"any":     PlatformAny,
		"windows": PlatformWindows,
		"posix":   PlatformPOSIX,
		"linux":   PlatformPOSIX,
	} {
		got, err := ParsePlatform(in)
		if err != nil || got != want {
			t.Errorf("ParsePlatform(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePlatform("beos"); err == nil {
		t.Error("unknown platform should error")
	}
}
