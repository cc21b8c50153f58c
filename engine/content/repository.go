// Package content reads authored course material from a sandboxed tree.
// Every path handed to the repository is resolved relative to the content
// root and any attempt to escape it is rejected.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Repository provides sandboxed reads under a single content root.
type Repository struct {
	root string
}

// NewRepository normalizes root to an absolute path.
func NewRepository(root string) (*Repository, error) {
	if root == "" {
		return nil, fmt.Errorf("content root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving content root: %w", err)
	}
	return &Repository{root: abs}, nil
}

// Root returns the absolute content root.
func (r *Repository) Root() string { return r.root }

// Resolve joins rel onto the content root and verifies the result stays
// inside it. Absolute inputs and parent traversal are rejected.
func (r *Repository) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("content path %q is outside the content directory", rel)
	}
	abs, err := filepath.Abs(filepath.Join(r.root, filepath.Clean(rel)))
	if err != nil {
		return "", fmt.Errorf("resolving content path %q: %w", rel, err)
	}
	inside, err := filepath.Rel(r.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("content path %q is outside the content directory", rel)
	}
	return abs, nil
}

// ReadFile returns the contents of a file inside the sandbox.
func (r *Repository) ReadFile(rel string) (string, error) {
	abs, err := r.Resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("content file not found at %s", rel)
		}
		return "", fmt.Errorf("reading content file %s: %w", rel, err)
	}
	return string(data), nil
}

// ListDir returns the names of regular files in a directory inside the
// sandbox. A missing directory yields os.ErrNotExist.
func (r *Repository) ListDir(rel string) ([]string, error) {
	abs, err := r.Resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
