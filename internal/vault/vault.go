// Package vault provides access to a watched tree of text documents.
package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source lists and reads documents addressed by vault-relative slash paths.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, path string) (string, error)
}

// Vault is a Source rooted at a directory on disk. Dotfiles and dot
// directories (vault metadata, VCS internals) are invisible to it.
type Vault struct {
	root       string
	extensions []string
}

// New returns a vault rooted at dir, creating the directory if it does not
// exist. extensions filters which files are documents (empty = all).
func New(dir string, extensions []string) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault dir: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vault dir: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat vault dir: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("vault path is not a directory: %s", abs)
	}
	return &Vault{root: abs, extensions: extensions}, nil
}

// Root returns the absolute vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// Allowed reports whether path has one of the configured document extensions.
func (v *Vault) Allowed(path string) bool {
	if len(v.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range v.extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// List returns the vault-relative paths of all documents, sorted.
func (v *Vault) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == v.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !v.Allowed(path) {
			return nil
		}
		rel, ok := v.Rel(path)
		if !ok {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Read returns the content of the document at the vault-relative path.
// Paths escaping the vault root are rejected; a missing document surfaces
// as fs.ErrNotExist.
func (v *Vault) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs := filepath.Join(v.root, filepath.FromSlash(path))
	if _, ok := v.Rel(abs); !ok {
		return "", fmt.Errorf("path escapes vault: %s", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Rel converts an absolute filesystem path to a vault-relative slash path.
// The second return is false when the path lies outside the vault root.
func (v *Vault) Rel(absPath string) (string, bool) {
	rel, err := filepath.Rel(v.root, filepath.Clean(absPath))
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
