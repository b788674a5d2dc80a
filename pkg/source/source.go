package source

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/stagepkg/stagepkg/pkg/workspace"
)

// backend is the contract every package source variant implements. The set of
// implementations is closed: registryPackage, vcsRepo, and localDir are the
// only three, and nothing outside this package can add more.
type backend interface {
	fmt.Stringer

	fetch(ctx context.Context, ws workspace.Workspace) error
	purgeFromCache(ws workspace.Workspace) error
	copySourceTo(ws workspace.Workspace, dest string) error
}

// Package is an immutable descriptor for a versioned package coming from a
// registry, a version-control repository, or a local directory. It carries no
// cache state itself: all cache state lives in the workspace and is addressed
// by the descriptor, so two Package values with identical fields are
// interchangeable.
type Package struct {
	name    string
	backend backend
}

// FromRegistry builds a package descriptor for name@version published in the
// given registry.
func FromRegistry(reg Registry, name, version string) Package {
	return Package{
		name:    name,
		backend: &registryPackage{registry: reg, name: name, version: version},
	}
}

// FromCentralRegistry builds a package descriptor for name@version published
// in the central registry.
func FromCentralRegistry(name, version string) Package {
	return FromRegistry(CentralRegistry(), name, version)
}

// FromVCS builds a package descriptor for a version-control repository,
// tracking the remote's default branch. The full URL needed to clone the
// repository has to be provided.
func FromVCS(url, name string) Package {
	return Package{
		name:    name,
		backend: &vcsRepo{url: url, name: name},
	}
}

// FromVCSBranch builds a package descriptor for a version-control repository,
// tracking a specific branch.
func FromVCSBranch(url, name, branch string) Package {
	return Package{
		name:    name,
		backend: &vcsRepo{url: url, name: name, branch: branch},
	}
}

// FromLocal builds a package descriptor for a directory in the local
// filesystem.
func FromLocal(path, name string) Package {
	return Package{
		name:    name,
		backend: &localDir{path: path, name: name},
	}
}

// Name returns the name of the package.
func (p Package) Name() string {
	return p.name
}

// Fetch retrieves the package's source and caches it in the workspace. This
// method reaches out to the network for registry and VCS packages. Calling it
// again after a successful fetch is a no-op with respect to the final cache
// state.
func (p Package) Fetch(ctx context.Context, ws workspace.Workspace) error {
	return p.backend.fetch(ctx, ws)
}

// PurgeFromCache removes the cached copy of this package. It does nothing if
// the package isn't cached. A subsequent Fetch re-materializes the cache from
// scratch.
func (p Package) PurgeFromCache(ws workspace.Workspace) error {
	return p.backend.purgeFromCache(ws)
}

// GitCommit returns the commit this package's cached source corresponds to.
// The lookup is best-effort and only works for VCS packages with a resolvable
// cache entry; in every other case, including any internal failure, it
// returns ("", false). Provenance is advisory metadata, so failures are
// deliberately collapsed into "no answer" rather than surfaced as errors.
func (p Package) GitCommit(ws workspace.Workspace) (string, bool) {
	if repo, ok := p.backend.(*vcsRepo); ok {
		return repo.gitCommit(ws)
	}
	return "", false
}

// CopySourceTo materializes the cached source tree into dest. If dest already
// exists it is recursively removed first, regardless of backend, so that
// residue from a previously staged package can never leak into the new tree.
// Callers must therefore pass only paths they own exclusively. For registry
// and VCS packages a successful Fetch must have completed beforehand,
// otherwise ErrNotCached is returned.
func (p Package) CopySourceTo(ws workspace.Workspace, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		log.Printf("package source directory %s already exists, cleaning it up", dest)
		if err := ws.RemoveDirRecursive(dest); err != nil {
			return fmt.Errorf("removing existing destination %s: %w", dest, err)
		}
	}
	return p.backend.copySourceTo(ws, dest)
}

// String renders a human-readable identity for logging and error messages.
// It is not a cache key.
func (p Package) String() string {
	return p.backend.String()
}
