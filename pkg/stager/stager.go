package stager

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/stagepkg/stagepkg/pkg/manifest"
	"github.com/stagepkg/stagepkg/pkg/source"
	"github.com/stagepkg/stagepkg/pkg/workspace"
)

// Stager fetches packages into the workspace cache and stages their source
// trees into per-package build directories.
type Stager struct {
	Workspace workspace.Workspace

	// Workers bounds staging parallelism. Zero or negative means serial.
	Workers int

	// Offline skips all fetches; only already-cached sources can be staged.
	Offline bool

	// SkipValidate disables manifest validation of staged trees.
	SkipValidate bool

	Logger *log.Logger
}

// Result describes one successfully staged package.
type Result struct {
	Package  source.Package
	Dest     string
	Manifest *manifest.Manifest

	// Commit is the resolved provenance of VCS-backed packages, empty
	// otherwise.
	Commit string
}

// StageAll fetches and stages every package, each into its conventional build
// directory, with bounded parallelism. A cache-key lock is held around each
// package's fetch and copy so that concurrent runs sharing the workspace
// never race on the same cache entry. The first failure cancels the
// remaining work; nothing is retried here, retry policy belongs to the
// caller.
func (s *Stager) StageAll(ctx context.Context, pkgs []source.Package) ([]Result, error) {
	results := make([]Result, len(pkgs))

	g, ctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	} else {
		g.SetLimit(1)
	}

	for i, pkg := range pkgs {
		g.Go(func() error {
			res, err := s.Stage(ctx, pkg, s.Workspace.BuildDir(pkg.Name()))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stage fetches one package and materializes its source tree at dest. The
// destination is owned exclusively by this staging job: any pre-existing
// content there is removed.
func (s *Stager) Stage(ctx context.Context, pkg source.Package, dest string) (Result, error) {
	unlock, err := s.Workspace.Lock(pkg.String())
	if err != nil {
		return Result{}, fmt.Errorf("locking cache entry for %s: %w", pkg, err)
	}
	defer unlock()

	if s.Offline {
		s.logger().Debug("offline, staging from cache", "package", pkg.String())
	} else {
		if err := pkg.Fetch(ctx, s.Workspace); err != nil {
			return Result{}, fmt.Errorf("fetching %s: %w", pkg, err)
		}
	}

	if err := pkg.CopySourceTo(s.Workspace, dest); err != nil {
		return Result{}, fmt.Errorf("staging %s: %w", pkg, err)
	}

	res := Result{Package: pkg, Dest: dest}

	if commit, ok := pkg.GitCommit(s.Workspace); ok {
		res.Commit = commit
	}

	if !s.SkipValidate {
		m, err := manifest.Load(dest)
		if err != nil {
			return Result{}, fmt.Errorf("staged tree for %s has no usable manifest: %w", pkg, err)
		}
		if err := m.Validate(); err != nil {
			return Result{}, fmt.Errorf("validating manifest of %s: %w", pkg, err)
		}
		res.Manifest = m
	}

	s.logger().Info("staged", "package", pkg.String(), "dest", dest, "commit", res.Commit)
	return res, nil
}

// Purge removes every package's cache entry, holding the same per-key locks
// as staging. Missing entries are not errors. Previously staged build
// directories are independent snapshots and are left untouched.
func (s *Stager) Purge(pkgs []source.Package) error {
	for _, pkg := range pkgs {
		unlock, err := s.Workspace.Lock(pkg.String())
		if err != nil {
			return fmt.Errorf("locking cache entry for %s: %w", pkg, err)
		}
		err = pkg.PurgeFromCache(s.Workspace)
		unlock()
		if err != nil {
			return fmt.Errorf("purging %s: %w", pkg, err)
		}
		s.logger().Info("purged", "package", pkg.String())
	}
	return nil
}

func (s *Stager) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}
