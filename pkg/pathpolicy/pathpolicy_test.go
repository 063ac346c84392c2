package pathpolicy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSubset_DeepEscape(t *testing.T) {
	root := t.TempDir()
	parent := filepath.Join(root, "volumes", "main")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		t.Fatal(err)
	}

	// "code/fakedir/../../.." walks out of fakedir, then code, then main,
	// landing on volumes — one level above parent, reached through
	// directories that don't exist. This must not be considered contained
	// in parent.
	escaped := filepath.Join(parent, "code", "fakedir", "..", "..", "..")

	ok, err := IsSubset(parent, escaped)
	if err != nil {
		t.Fatalf("IsSubset returned error: %v", err)
	}
	if ok {
		t.Errorf("IsSubset(%q, %q) = true, want false", parent, escaped)
	}
}

func TestIsSubset_PlainDescendant(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	child := filepath.Join(root, "sub", "not-yet-created.txt")

	ok, err := IsSubset(root, child)
	if err != nil {
		t.Fatalf("IsSubset returned error: %v", err)
	}
	if !ok {
		t.Errorf("IsSubset(%q, %q) = false, want true", root, child)
	}
}

func TestIsSubset_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	parent := filepath.Join(root, "volume")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(parent, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	child := filepath.Join(link, "secret.txt")
	// The file is created under the symlink's target (outside), so child
	// exists and canonicalises through the symlink to a path outside
	// parent.
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := IsSubset(parent, child)
	if err != nil {
		t.Fatalf("IsSubset returned error: %v", err)
	}
	if ok {
		t.Errorf("IsSubset(%q, %q) = true, want false (symlink escape)", parent, child)
	}
}

func TestIsSubset_NoExistingAncestor(t *testing.T) {
	// A relative path with more ".." than real components exhausts dirOf
	// before any ancestor can be tested for existence.
	ok, err := IsSubset("irrelevant", "doesnotexist/../../..")
	if err != nil {
		t.Fatalf("IsSubset returned error: %v", err)
	}
	if ok {
		t.Error("IsSubset with an exhausted relative path = true, want false")
	}
}

func TestCheck_WrapsEscapeError(t *testing.T) {
	root := t.TempDir()
	parent := filepath.Join(root, "main")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		t.Fatal(err)
	}

	err := Check(parent, filepath.Join(parent, "..", "..", "etc", "passwd"))
	if err == nil {
		t.Fatal("Check() = nil, want *EscapeError")
	}
	if _, ok := err.(*EscapeError); !ok {
		t.Errorf("Check() error type = %T, want *EscapeError", err)
	}
}
