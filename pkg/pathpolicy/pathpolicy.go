// Package pathpolicy implements the single operation every filesystem op in
// the Ops Surface relies on: a subtree-containment check that defeats ".."
// traversal, symlink escape, and non-existent-leaf tricks.
package pathpolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsSubset reports whether child is contained within parent.
//
// The child path is walked from the leaf upward: trailing ".." components
// increment a counter, a real component decrements it (if the counter is
// already positive) or, once the counter reaches zero, is tested for
// existence on disk. The first existing ancestor found this way is
// canonicalised (resolving symlinks) and must share a path-component prefix
// with the canonicalised parent. This lexical-then-filesystem two-step means
// a child need not exist yet (write_file targets a not-yet-created file) but
// its nearest existing ancestor must be a real descendant of parent.
//
// IsSubset never walks outside the filesystem root: if no existing ancestor
// is found before the path is exhausted, it returns (false, nil).
func IsSubset(parent, child string) (bool, error) {
	current := child
	pendingParents := 0

	for {
		if lastComponent(current) == ".." {
			pendingParents++
		} else if pendingParents > 0 {
			pendingParents--
		} else if _, err := os.Stat(current); err == nil {
			break
		}

		next, ok := dirOf(current)
		if !ok {
			return false, nil
		}
		current = next
	}

	canonChild, err := filepath.EvalSymlinks(current)
	if err != nil {
		return false, fmt.Errorf("canonicalising %q: %w", current, err)
	}
	canonParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return false, fmt.Errorf("canonicalising %q: %w", parent, err)
	}

	return hasPathPrefix(canonParent, canonChild), nil
}

// EscapeError reports a path that failed IsSubset, quoting both paths as
// spec.md §4.1 requires.
type EscapeError struct {
	Child  string
	Parent string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("path %q has broken away from parent %q", e.Child, e.Parent)
}

// Check is IsSubset plus the conventional error wrapping ops use: nil on
// success, *EscapeError on containment failure, or the underlying IO error.
func Check(parent, child string) error {
	ok, err := IsSubset(parent, child)
	if err != nil {
		return err
	}
	if !ok {
		return &EscapeError{Child: child, Parent: parent}
	}
	return nil
}

// lastComponent returns the final path element without collapsing any
// interior ".." sequences — deliberately not filepath.Clean, which would
// lexically resolve ".." before we get a chance to count it.
func lastComponent(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// dirOf strips the final path element, again without lexical ".." collapse.
// Returns ok=false once there is no parent left to strip (the path is
// exhausted).
func dirOf(p string) (string, bool) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "", false
	}
	idx := strings.LastIndex(trimmed, "/")
	switch {
	case idx < 0:
		return "", false
	case idx == 0:
		return "/", true
	default:
		return trimmed[:idx], true
	}
}

// hasPathPrefix is Path::starts_with from the original: a component-wise
// prefix check, not a raw string prefix (so "/home/xx" is not a subset of
// "/home/x").
func hasPathPrefix(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if parent == child {
		return true
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
