package joblist

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/stagepkg/stagepkg/pkg/config"
	"github.com/stagepkg/stagepkg/pkg/source"
)

// List is a YAML file describing a batch of package source descriptors for a
// mass-build run.
type List struct {
	Packages []Entry `json:"packages"`
}

// Entry is one package source descriptor. Exactly one of Version, Git, or
// Path selects the source kind.
type Entry struct {
	Name string `json:"name"`

	// Registry source: exact published version, optionally from a named
	// alternate registry.
	Version  string `json:"version,omitempty"`
	Registry string `json:"registry,omitempty"`

	// Version-control source: clone URL plus optional branch.
	Git    string `json:"git,omitempty"`
	Branch string `json:"branch,omitempty"`

	// Local source: directory on the filesystem.
	Path string `json:"path,omitempty"`
}

// Load reads a job list file and resolves every entry into a package
// descriptor, using cfg to resolve registry identities.
func Load(path string, cfg *config.Config) ([]source.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job list %s: %w", path, err)
	}

	var list List
	if err := yaml.UnmarshalStrict(data, &list); err != nil {
		return nil, fmt.Errorf("parsing job list %s: %w", path, err)
	}

	pkgs := make([]source.Package, 0, len(list.Packages))
	for i, e := range list.Packages {
		pkg, err := e.Package(cfg)
		if err != nil {
			return nil, fmt.Errorf("job list %s, entry %d: %w", path, i, err)
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

// Package resolves the entry into a package descriptor.
func (e Entry) Package(cfg *config.Config) (source.Package, error) {
	if e.Name == "" {
		return source.Package{}, fmt.Errorf("package name is required")
	}

	set := 0
	for _, s := range []string{e.Version, e.Git, e.Path} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return source.Package{}, fmt.Errorf("package %q: exactly one of version, git, or path must be set", e.Name)
	}

	switch {
	case e.Version != "":
		reg, err := cfg.Registry(e.Registry)
		if err != nil {
			return source.Package{}, fmt.Errorf("package %q: %w", e.Name, err)
		}
		return source.FromRegistry(reg, e.Name, e.Version), nil
	case e.Git != "":
		if e.Branch != "" {
			return source.FromVCSBranch(e.Git, e.Name, e.Branch), nil
		}
		return source.FromVCS(e.Git, e.Name), nil
	default:
		return source.FromLocal(e.Path, e.Name), nil
	}
}
