package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stagepkg/stagepkg/pkg/config"
	"github.com/stagepkg/stagepkg/pkg/source"
)

// parseRef parses a user-provided package reference into a descriptor.
// Local filesystem paths (starting with ./, ../, or absolute) produce a local
// package. Anything with a URL scheme or SSH shorthand is a VCS package, with
// an optional #branch suffix. Everything else is a registry reference of the
// form [registry/]name@version.
func parseRef(cfg *config.Config, ref string) (source.Package, error) {
	if isLocalPath(ref) {
		return source.FromLocal(ref, filepath.Base(ref)), nil
	}

	if isVCSRef(ref) {
		url := ref
		branch := ""
		if idx := strings.LastIndex(ref, "#"); idx >= 0 {
			url = ref[:idx]
			branch = ref[idx+1:]
		}
		name := repoName(url)
		if branch != "" {
			return source.FromVCSBranch(url, name, branch), nil
		}
		return source.FromVCS(url, name), nil
	}

	parts := strings.SplitN(ref, "@", 2)
	if len(parts) != 2 || parts[1] == "" {
		return source.Package{}, fmt.Errorf("invalid ref %q: must contain @version (e.g. left-pad@1.0.0)", ref)
	}

	name := parts[0]
	registryID := ""
	if idx := strings.Index(name, "/"); idx >= 0 {
		registryID = name[:idx]
		name = name[idx+1:]
	}
	if name == "" {
		return source.Package{}, fmt.Errorf("invalid ref %q: missing package name", ref)
	}

	reg, err := cfg.Registry(registryID)
	if err != nil {
		return source.Package{}, fmt.Errorf("invalid ref %q: %w", ref, err)
	}
	return source.FromRegistry(reg, name, parts[1]), nil
}

// isLocalPath reports whether ref looks like a local filesystem path.
func isLocalPath(ref string) bool {
	return strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") || filepath.IsAbs(ref)
}

// isVCSRef reports whether ref looks like a repository location rather than a
// registry coordinate.
func isVCSRef(ref string) bool {
	return strings.Contains(ref, "://") || strings.HasPrefix(ref, "git@")
}

// repoName derives a package name from the last path component of a
// repository URL.
func repoName(url string) string {
	name := strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
