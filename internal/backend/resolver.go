package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves a requested path against a project root and enforces
// containment: after normalization (resolving "." and ".." without
// touching symlinks) the result must start with the normalized project
// root prefix.
type Resolver struct {
	Root string
}

// Resolve returns the absolute path for rel within the project root, or an
// error if it escapes the root.
func (r Resolver) Resolve(rel string) (string, error) {
	clean := strings.TrimSpace(rel)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}

	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	relPath, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", errContainment
	}
	return targetAbs, nil
}

var errContainment = fmt.Errorf(ErrPathOutsideProjectScope)
