package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/stagepkg/stagepkg/pkg/workspace"
)

// vcsRepo is the backend for packages living in a version-control repository.
// The cache entry is a full working clone, keyed by (url, branch-or-default):
// the same URL tracked at two different branches gets two independent cache
// entries.
type vcsRepo struct {
	url    string
	name   string
	branch string // empty means the remote's default branch
}

var _ backend = &vcsRepo{}

func (v *vcsRepo) cacheSegments() ([]string, error) {
	host, repoPath, err := parseVCSURL(v.url)
	if err != nil {
		return nil, fmt.Errorf("parsing repository URL %q: %w", v.url, err)
	}

	branch := v.branch
	if branch == "" {
		branch = "HEAD"
	}

	segs := []string{"vcs", host}
	segs = append(segs, strings.Split(repoPath, "/")...)
	segs = append(segs, branch)
	return segs, nil
}

func (v *vcsRepo) fetch(ctx context.Context, ws workspace.Workspace) error {
	segs, err := v.cacheSegments()
	if err != nil {
		return err
	}

	cached, err := ws.Exists(segs...)
	if err != nil {
		return fmt.Errorf("checking cache for %s: %w", v, err)
	}

	if !cached {
		return v.clone(ctx, ws, segs)
	}
	return v.update(ctx, ws.CachePath(segs...))
}

func (v *vcsRepo) clone(ctx context.Context, ws workspace.Workspace, segs []string) error {
	if err := ws.EnsureDir(segs[:len(segs)-1]...); err != nil {
		return fmt.Errorf("creating cache directory for %s: %w", v, err)
	}

	opts := &git.CloneOptions{URL: v.url}
	if v.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(v.branch)
		opts.SingleBranch = true
	}

	dir := ws.CachePath(segs...)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		// A failed clone can leave a half-written directory behind; the
		// next fetch must start from scratch.
		_ = ws.Remove(segs...)
		return mapGitError(v, err)
	}
	return nil
}

// update refreshes an existing clone to the tip of the tracked branch (or the
// remote's current default branch), discarding any local state.
func (v *vcsRepo) update(ctx context.Context, dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("opening cached clone of %s: %w", v, err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: git.DefaultRemoteName, Force: true, Tags: git.NoTags})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return mapGitError(v, err)
	}

	target, err := v.remoteTip(ctx, repo)
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree of %s: %w", v, err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting %s to %s: %w", v, target, err)
	}
	return nil
}

// remoteTip resolves the commit the tracked branch points at on the remote.
// With no branch configured it follows the remote's HEAD symref, so a default
// branch renamed upstream is picked up on the next fetch.
func (v *vcsRepo) remoteTip(ctx context.Context, repo *git.Repository) (plumbing.Hash, error) {
	if v.branch != "" {
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, v.branch), true)
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return plumbing.ZeroHash, fmt.Errorf("%w: branch %q does not exist in %s", ErrNotFound, v.branch, v.url)
			}
			return plumbing.ZeroHash, fmt.Errorf("resolving branch %q of %s: %w", v.branch, v.url, err)
		}
		return ref.Hash(), nil
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving remote of %s: %w", v, err)
	}
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return plumbing.ZeroHash, mapGitError(v, err)
	}

	var headTarget plumbing.ReferenceName
	byName := make(map[plumbing.ReferenceName]plumbing.Hash, len(refs))
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			headTarget = ref.Target()
			continue
		}
		byName[ref.Name()] = ref.Hash()
	}

	if hash, ok := byName[headTarget]; ok {
		return hash, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: no default branch in %s", ErrNotFound, v.url)
}

func (v *vcsRepo) purgeFromCache(ws workspace.Workspace) error {
	segs, err := v.cacheSegments()
	if err != nil {
		return err
	}
	return ws.Remove(segs...)
}

func (v *vcsRepo) copySourceTo(ws workspace.Workspace, dest string) error {
	segs, err := v.cacheSegments()
	if err != nil {
		return err
	}

	cached, err := ws.Exists(segs...)
	if err != nil {
		return fmt.Errorf("checking cache for %s: %w", v, err)
	}
	if !cached {
		return fmt.Errorf("%w: %s (fetch it first)", ErrNotCached, v)
	}

	return ws.CopyDir(ws.CachePath(segs...), dest, func(rel string, _ fs.DirEntry) bool {
		return rel == git.GitDirName
	})
}

// gitCommit resolves the commit the cached working tree currently sits on.
// Everything that can go wrong results in ("", false).
func (v *vcsRepo) gitCommit(ws workspace.Workspace) (string, bool) {
	segs, err := v.cacheSegments()
	if err != nil {
		return "", false
	}
	if cached, err := ws.Exists(segs...); err != nil || !cached {
		return "", false
	}

	repo, err := git.PlainOpen(ws.CachePath(segs...))
	if err != nil {
		return "", false
	}
	head, err := repo.Head()
	if err != nil {
		return "", false
	}
	return head.Hash().String(), true
}

func (v *vcsRepo) String() string {
	if v.branch != "" {
		return fmt.Sprintf("%s#%s", v.url, v.branch)
	}
	return v.url
}

// mapGitError folds go-git failures into the source error taxonomy: missing
// repositories and branches are not-found, everything else that happens while
// talking to the remote is a transport failure.
func mapGitError(v *vcsRepo, err error) error {
	var noMatch git.NoMatchingRefSpecError
	switch {
	case errors.As(err, &noMatch), errors.Is(err, plumbing.ErrReferenceNotFound):
		return fmt.Errorf("%w: branch %q does not exist in %s", ErrNotFound, v.branch, v.url)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return fmt.Errorf("%w: repository %s does not exist", ErrNotFound, v.url)
	default:
		return fmt.Errorf("%w: syncing %s: %v", ErrTransport, v, err)
	}
}

// parseVCSURL extracts the host and repository path from a repository URL.
// Supports HTTPS URLs, SSH shorthand (git@host:owner/repo.git), and plain
// filesystem paths (used by tests and local mirrors).
func parseVCSURL(rawURL string) (host, repoPath string, err error) {
	// SSH shorthand: git@github.com:owner/repo.git
	if idx := strings.Index(rawURL, ":"); idx > 0 && !strings.Contains(rawURL[:idx], "/") && !strings.Contains(rawURL, "://") {
		host = rawURL[:idx]
		if at := strings.Index(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		repoPath = strings.TrimSuffix(rawURL[idx+1:], ".git")
		return host, repoPath, nil
	}

	if !strings.Contains(rawURL, "://") {
		// Filesystem path.
		repoPath = strings.TrimSuffix(strings.Trim(rawURL, "/"), ".git")
		return "local", repoPath, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	repoPath = strings.TrimPrefix(u.Path, "/")
	repoPath = strings.TrimSuffix(repoPath, ".git")
	return u.Host, repoPath, nil
}
