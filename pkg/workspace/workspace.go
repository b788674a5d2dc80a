package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	dirPerm     = 0o755
	DefaultRoot = ".stagepkg"
)

// SkipFunc decides whether a relative path inside a copied tree should be
// skipped. Returning true for a directory skips its entire subtree.
type SkipFunc func(rel string, d fs.DirEntry) bool

// Workspace owns the on-disk layout shared by all package sources: the cache
// of fetched sources, the per-package build directories, and the lock files
// that serialize concurrent access to a cache entry.
type Workspace interface {
	// Root returns the workspace root directory.
	Root() string
	// CachePath returns the absolute filesystem path for the given segments
	// joined under the workspace cache root. Does not create or verify the
	// path. Use this to get a target path for external tools (e.g. a git
	// clone destination).
	CachePath(segments ...string) string
	// Exists reports whether the cache path at the given segments exists.
	Exists(segments ...string) (bool, error)
	// EnsureDir creates the cache directory at segments, including parents.
	EnsureDir(segments ...string) error
	// Remove deletes the entire cache tree at segments. Removing a path
	// that does not exist is not an error.
	Remove(segments ...string) error
	// RemoveDirRecursive deletes the tree at an absolute path outside the
	// cache (e.g. a build destination about to be re-staged).
	RemoveDirRecursive(path string) error
	// CopyDir recursively copies the directory at src into dst, preserving
	// file modes and recreating symlinks. dst must not exist or be empty.
	// Entries for which skip returns true are left out of the copy.
	CopyDir(src, dst string, skip SkipFunc) error
	// BuildDir returns the conventional build destination for a package
	// name. The directory is not created.
	BuildDir(name string) string
	// Lock takes an exclusive advisory lock for the given cache key,
	// blocking until it is acquired. The returned function releases it.
	// Two callers fetching or purging the same cache entry must hold the
	// same lock; different keys never contend.
	Lock(key string) (func(), error)
}

func New(root string) Workspace {
	return &workspace{root: root}
}

func Default() (Workspace, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	return &workspace{root: filepath.Join(home, DefaultRoot)}, nil
}

type workspace struct {
	root string
}

var _ Workspace = &workspace{}

func (w *workspace) Root() string {
	return w.root
}

func (w *workspace) CachePath(segments ...string) string {
	return filepath.Join(append([]string{w.root, "cache"}, segments...)...)
}

func (w *workspace) Exists(segments ...string) (bool, error) {
	_, err := os.Stat(w.CachePath(segments...))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (w *workspace) EnsureDir(segments ...string) error {
	return os.MkdirAll(w.CachePath(segments...), dirPerm)
}

func (w *workspace) Remove(segments ...string) error {
	return os.RemoveAll(w.CachePath(segments...))
}

func (w *workspace) RemoveDirRecursive(path string) error {
	return os.RemoveAll(path)
}

func (w *workspace) BuildDir(name string) string {
	return filepath.Join(w.root, "builds", name, "source")
}

func (w *workspace) CopyDir(src, dst string, skip SkipFunc) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel != "." && skip != nil && skip(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func (w *workspace) Lock(key string) (func(), error) {
	locksDir := filepath.Join(w.root, "locks")
	if err := os.MkdirAll(locksDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating locks directory: %w", err)
	}

	fl := flock.New(filepath.Join(locksDir, lockFileName(key)))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("locking cache key %q: %w", key, err)
	}

	return func() {
		_ = fl.Unlock()
	}, nil
}

// lockFileName maps an arbitrary cache key to a filesystem-safe lock name.
func lockFileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".lock"
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
