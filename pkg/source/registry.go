package source

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/stagepkg/stagepkg/pkg/workspace"
)

// DefaultCentralDL is the download endpoint template of the central registry.
// {name} and {version} are substituted per package.
const DefaultCentralDL = "https://registry.stagepkg.dev/api/v1/packages/{name}/{version}/download"

const centralRegistryID = "central"

// Registry identifies a package registry and knows how to form download URLs
// for published artifacts. The zero value is not usable; construct with
// CentralRegistry or AlternateRegistry.
type Registry struct {
	id string
	dl string
}

// CentralRegistry returns the default, well-known registry.
func CentralRegistry() Registry {
	return Registry{id: centralRegistryID, dl: DefaultCentralDL}
}

// AlternateRegistry returns a secondary registry identified by id, with its
// own download endpoint template (same {name}/{version} placeholders as
// DefaultCentralDL).
func AlternateRegistry(id, dl string) Registry {
	return Registry{id: id, dl: dl}
}

// ID returns the registry's identity, used as a cache key component.
func (r Registry) ID() string {
	return r.id
}

func (r Registry) downloadURL(name, version string) string {
	url := strings.ReplaceAll(r.dl, "{name}", name)
	return strings.ReplaceAll(url, "{version}", version)
}

func (r Registry) String() string {
	if r.id == centralRegistryID {
		return "central registry"
	}
	return fmt.Sprintf("registry %s", r.id)
}

// registryPackage is the backend for exact-version packages published in a
// registry. The cache entry is the extracted source tree, keyed by
// (registry, name, version), so two different versions never collide.
type registryPackage struct {
	registry Registry
	name     string
	version  string
}

var _ backend = &registryPackage{}

func (r *registryPackage) cacheSegments() []string {
	return []string{"registry", r.registry.ID(), r.name, r.version}
}

func (r *registryPackage) fetch(ctx context.Context, ws workspace.Workspace) error {
	segs := r.cacheSegments()

	cached, err := ws.Exists(segs...)
	if err != nil {
		return fmt.Errorf("checking cache for %s: %w", r, err)
	}
	if cached {
		return nil
	}

	if err := ws.EnsureDir(segs[:len(segs)-1]...); err != nil {
		return fmt.Errorf("creating cache directory for %s: %w", r, err)
	}

	// Extract into a sibling temp directory and rename into place so a
	// failed download never leaves a partial cache entry behind.
	dest := ws.CachePath(segs...)
	tmp := dest + ".tmp"
	_ = os.RemoveAll(tmp)

	if err := r.download(ctx, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("committing cache entry for %s: %w", r, err)
	}

	return nil
}

func (r *registryPackage) download(ctx context.Context, dest string) error {
	url := r.registry.downloadURL(r.name, r.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building download request for %s: %w", r, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: downloading %s: %v", ErrTransport, r, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s does not exist in the %s", ErrNotFound, r, r.registry)
	default:
		return fmt.Errorf("%w: downloading %s: unexpected status %s", ErrTransport, r, resp.Status)
	}

	if err := extractPackageArchive(resp.Body, dest); err != nil {
		return fmt.Errorf("extracting archive for %s: %w", r, err)
	}
	return nil
}

func (r *registryPackage) purgeFromCache(ws workspace.Workspace) error {
	return ws.Remove(r.cacheSegments()...)
}

func (r *registryPackage) copySourceTo(ws workspace.Workspace, dest string) error {
	segs := r.cacheSegments()

	cached, err := ws.Exists(segs...)
	if err != nil {
		return fmt.Errorf("checking cache for %s: %w", r, err)
	}
	if !cached {
		return fmt.Errorf("%w: %s (fetch it first)", ErrNotCached, r)
	}

	return ws.CopyDir(ws.CachePath(segs...), dest, nil)
}

func (r *registryPackage) String() string {
	return fmt.Sprintf("%s %s (%s)", r.name, r.version, r.registry)
}

// extractPackageArchive extracts a gzip-compressed tar archive into dest,
// stripping the conventional single top-level <name>-<version>/ directory so
// the package manifest lands at the root of dest. Entries that would escape
// dest are rejected.
func extractPackageArchive(archive io.Reader, dest string) error {
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar stream: %w", err)
		}

		rel, ok := stripArchiveRoot(hdr.Name)
		if !ok {
			continue
		}
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("archive entry %q escapes the package root", hdr.Name)
		}
		target := filepath.Join(dest, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, fs.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeArchiveFile(tr, target, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !filepath.IsLocal(filepath.Join(filepath.Dir(rel), hdr.Linkname)) {
				return fmt.Errorf("archive symlink %q escapes the package root", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// Hard links, devices, and the rest have no business in a
			// package archive.
			return fmt.Errorf("unsupported archive entry type %d for %q", hdr.Typeflag, hdr.Name)
		}
	}
}

// stripArchiveRoot drops the first path component of a tar entry name.
// Returns ok=false for the root directory entry itself. The remainder is
// deliberately not cleaned, so traversal sequences survive for the IsLocal
// check at the call site.
func stripArchiveRoot(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return "", false
	}
	rel := name[idx+1:]
	if rel == "" {
		return "", false
	}
	return filepath.FromSlash(rel), true
}

func writeArchiveFile(r io.Reader, target string, perm fs.FileMode) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
