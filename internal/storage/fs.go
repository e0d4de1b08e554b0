package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const docExt = ".json"

// FS implements Provider with one JSON document per key under a flat data
// directory.
type FS struct {
	root string // absolute path to the data directory
}

// NewFS creates an FS provider rooted at the given directory. The
// directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory, for the change watcher.
func (f *FS) Root() string {
	return f.root
}

// keyPath maps a key to its document path, rejecting anything that could
// escape the data directory. Keys are flat identifiers, never paths.
func (f *FS) keyPath(key string) (string, error) {
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return "", fmt.Errorf("storage: invalid key %q", key)
		}
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(f.root, key+docExt), nil
}

// KeyFromPath converts a document path back to its key, or "" when the
// path is not a document (temp files, foreign files).
func KeyFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, docExt) || strings.HasPrefix(base, ".") {
		return ""
	}
	return strings.TrimSuffix(base, docExt)
}

// Get returns the document stored under key.
func (f *FS) Get(key string) ([]byte, error) {
	p, err := f.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return data, nil
}

// Set atomically writes the document: tmp file → fsync → rename.
func (f *FS) Set(key string, value []byte) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".waypost-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the document stored under key, tolerating absence.
func (f *FS) Delete(key string) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every stored key with the given prefix.
func (f *FS) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list keys: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := KeyFromPath(e.Name())
		if key == "" || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, key)
	}
	return out, nil
}
