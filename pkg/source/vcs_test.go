package source

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// requireGit skips the test if git is not available.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

func runGit(t *testing.T, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// setupBareRepo creates a bare git repo with a single commit on main
// containing Package.toml and src/lib.go, plus a "dev" branch with one extra
// commit. Returns the bare repo path (usable as a clone URL), the work dir,
// and the main commit hash.
func setupBareRepo(t *testing.T) (repoURL, workDir, mainCommit string) {
	t.Helper()
	requireGit(t)

	workDir = filepath.Join(t.TempDir(), "work")

	runGit(t, "init", "--initial-branch=main", workDir)
	runGit(t, "-C", workDir, "config", "user.email", "test@test.com")
	runGit(t, "-C", workDir, "config", "user.name", "Test")

	writeTree(t, workDir, map[string]string{
		"Package.toml": "[package]\nname = \"demo\"\n",
		"src/lib.go":   "package demo\n",
	})
	runGit(t, "-C", workDir, "add", ".")
	runGit(t, "-C", workDir, "commit", "-m", "initial commit")
	mainCommit = runGit(t, "-C", workDir, "rev-parse", "HEAD")

	runGit(t, "-C", workDir, "checkout", "-b", "dev")
	writeTree(t, workDir, map[string]string{"dev-only.txt": "dev\n"})
	runGit(t, "-C", workDir, "add", ".")
	runGit(t, "-C", workDir, "commit", "-m", "dev commit")
	runGit(t, "-C", workDir, "checkout", "main")

	bareDir := filepath.Join(t.TempDir(), "repo.git")
	runGit(t, "clone", "--bare", workDir, bareDir)

	return bareDir, workDir, mainCommit
}

func TestVCSFetchAndCommit(t *testing.T) {
	repoURL, _, mainCommit := setupBareRepo(t)
	ws := testWorkspace(t)

	pkg := FromVCS(repoURL, "demo")
	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	commit, ok := pkg.GitCommit(ws)
	if !ok || commit == "" {
		t.Fatalf("GitCommit = (%q, %v), want a commit", commit, ok)
	}
	if commit != mainCommit {
		t.Errorf("GitCommit = %s, want %s", commit, mainCommit)
	}
}

func TestVCSFetchBranch(t *testing.T) {
	repoURL, _, mainCommit := setupBareRepo(t)
	ws := testWorkspace(t)

	pkg := FromVCSBranch(repoURL, "demo", "dev")
	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	commit, ok := pkg.GitCommit(ws)
	if !ok || commit == mainCommit {
		t.Fatalf("GitCommit = (%q, %v), want the dev branch tip", commit, ok)
	}

	dest := filepath.Join(t.TempDir(), "build")
	if err := pkg.CopySourceTo(ws, dest); err != nil {
		t.Fatalf("CopySourceTo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "dev-only.txt")); err != nil {
		t.Errorf("dev branch file missing from staged tree: %v", err)
	}
}

func TestVCSFetchMissingBranch(t *testing.T) {
	repoURL, _, _ := setupBareRepo(t)
	ws := testWorkspace(t)

	pkg := FromVCSBranch(repoURL, "demo", "does-not-exist")
	if err := pkg.Fetch(context.Background(), ws); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch error = %v, want ErrNotFound", err)
	}

	// The failed fetch must not leave a usable cache entry.
	dest := filepath.Join(t.TempDir(), "build")
	if err := pkg.CopySourceTo(ws, dest); !errors.Is(err, ErrNotCached) {
		t.Errorf("CopySourceTo after failed fetch = %v, want ErrNotCached", err)
	}
}

func TestVCSFetchUnreachableRemote(t *testing.T) {
	requireGit(t)
	ws := testWorkspace(t)

	pkg := FromVCS(filepath.Join(t.TempDir(), "no-repo-here"), "ghost")
	if err := pkg.Fetch(context.Background(), ws); err == nil {
		t.Fatal("Fetch succeeded against a nonexistent repository")
	}
}

func TestVCSCopyExcludesGitMetadata(t *testing.T) {
	repoURL, _, _ := setupBareRepo(t)
	ws := testWorkspace(t)

	pkg := FromVCS(repoURL, "demo")
	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "build")
	if err := pkg.CopySourceTo(ws, dest); err != nil {
		t.Fatalf("CopySourceTo: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, ".git")); !os.IsNotExist(err) {
		t.Errorf(".git leaked into the staged tree")
	}
	if _, err := os.Stat(filepath.Join(dest, "Package.toml")); err != nil {
		t.Errorf("manifest missing from staged tree: %v", err)
	}
}

func TestVCSFetchPicksUpNewCommits(t *testing.T) {
	repoURL, workDir, mainCommit := setupBareRepo(t)
	ws := testWorkspace(t)

	pkg := FromVCS(repoURL, "demo")
	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("initial Fetch: %v", err)
	}

	// Advance main upstream, then fetch again: the cache must follow.
	writeTree(t, workDir, map[string]string{"new.txt": "new\n"})
	runGit(t, "-C", workDir, "add", ".")
	runGit(t, "-C", workDir, "commit", "-m", "second commit")
	runGit(t, "-C", workDir, "push", repoURL, "main")

	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	commit, ok := pkg.GitCommit(ws)
	if !ok {
		t.Fatal("GitCommit returned no answer after update")
	}
	if commit == mainCommit {
		t.Errorf("cache still at %s after upstream advanced", commit)
	}

	dest := filepath.Join(t.TempDir(), "build")
	if err := pkg.CopySourceTo(ws, dest); err != nil {
		t.Fatalf("CopySourceTo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "new.txt")); err != nil {
		t.Errorf("staged tree does not reflect the latest fetch: %v", err)
	}
}

func TestVCSPurgeThenFetch(t *testing.T) {
	repoURL, _, mainCommit := setupBareRepo(t)
	ws := testWorkspace(t)

	pkg := FromVCS(repoURL, "demo")
	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := pkg.PurgeFromCache(ws); err != nil {
		t.Fatalf("PurgeFromCache: %v", err)
	}

	if commit, ok := pkg.GitCommit(ws); ok {
		t.Errorf("GitCommit = %q after purge, want no answer", commit)
	}

	if err := pkg.Fetch(context.Background(), ws); err != nil {
		t.Fatalf("Fetch after purge: %v", err)
	}
	if commit, ok := pkg.GitCommit(ws); !ok || commit != mainCommit {
		t.Errorf("GitCommit after re-fetch = (%q, %v), want (%q, true)", commit, ok, mainCommit)
	}
}

func TestVCSPurgeUncachedIsNoError(t *testing.T) {
	ws := testWorkspace(t)
	if err := FromVCS("https://example.com/owner/repo.git", "repo").PurgeFromCache(ws); err != nil {
		t.Errorf("PurgeFromCache on empty cache: %v", err)
	}
}

func TestParseVCSURL(t *testing.T) {
	tests := map[string]struct {
		url      string
		wantHost string
		wantPath string
	}{
		"https": {
			url:      "https://github.com/owner/repo.git",
			wantHost: "github.com",
			wantPath: "owner/repo",
		},
		"https no suffix": {
			url:      "https://gitlab.com/group/sub/repo",
			wantHost: "gitlab.com",
			wantPath: "group/sub/repo",
		},
		"ssh shorthand": {
			url:      "git@github.com:owner/repo.git",
			wantHost: "github.com",
			wantPath: "owner/repo",
		},
		"filesystem path": {
			url:      "/tmp/mirrors/repo.git",
			wantHost: "local",
			wantPath: "tmp/mirrors/repo",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			host, repoPath, err := parseVCSURL(tc.url)
			if err != nil {
				t.Fatalf("parseVCSURL(%q): %v", tc.url, err)
			}
			if host != tc.wantHost || repoPath != tc.wantPath {
				t.Errorf("parseVCSURL(%q) = (%q, %q), want (%q, %q)", tc.url, host, repoPath, tc.wantHost, tc.wantPath)
			}
		})
	}
}
