package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/juv/internal/checksum"
	"github.com/starford/juv/internal/models"
)

// FS implements Provider backed by the local file system. A rooted FS
// resolves relative paths against its root and rejects anything outside
// it; an unrooted FS uses paths as given.
type FS struct {
	root string // absolute path, or "" when unrooted
}

// NewFS creates a provider that accepts any path.
func NewFS() *FS {
	return &FS{}
}

// NewRootedFS creates a provider confined to root.
// The directory must already exist.
func NewRootedFS(root string) (*FS, error) {
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

// Root returns the root directory, or "" for an unrooted FS.
func (f *FS) Root() string {
	return f.root
}

// resolve cleans p and, for a rooted FS, rejects any result that escapes
// the root (directory traversal).
func (f *FS) resolve(p string) (string, error) {
	if f.root == "" {
		if p == "" {
			p = "."
		}
		return filepath.Clean(p), nil
	}
	if p == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(p)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", p)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", p)
	}
	return abs, nil
}

func isDocument(name string) bool {
	return strings.HasSuffix(name, ".ipynb") || strings.HasSuffix(name, ".py")
}

// List walks dir and returns info for every script and notebook, skipping
// hidden directories.
func (f *FS) List(dir string) ([]models.DocumentInfo, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []models.DocumentInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isDocument(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(base, p)
		out = append(out, models.DocumentInfo{
			Path:      rel,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".juv-tmp-*")
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

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	// Keep the mode of a file being replaced.
	if info, err := os.Stat(abs); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0o644)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Abs returns the absolute path for path.
func (f *FS) Abs(path string) (string, error) {
	p, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// Exists reports whether a file exists at path.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("storage: stat %s: %w", path, err)
}

// Delete removes a file.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Stage creates a temporary file in dir holding content.
func (f *FS) Stage(dir, suffix string, content []byte) (string, error) {
	abs, err := f.resolve(dir)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(abs, ".juv-stage-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("storage: stage: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("storage: stage write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("storage: stage close: %w", err)
	}
	if f.root != "" {
		rel, err := filepath.Rel(f.root, name)
		if err == nil {
			return rel, nil
		}
	}
	return name, nil
}
