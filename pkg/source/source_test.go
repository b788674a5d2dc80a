package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stagepkg/stagepkg/pkg/workspace"
)

func testWorkspace(t *testing.T) workspace.Workspace {
	t.Helper()
	return workspace.New(t.TempDir())
}

// writeTree creates files under dir, keyed by relative path.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestName(t *testing.T) {
	tests := map[string]struct {
		pkg  Package
		want string
	}{
		"central registry": {
			pkg:  FromCentralRegistry("left-pad", "1.0.0"),
			want: "left-pad",
		},
		"alternate registry": {
			pkg:  FromRegistry(AlternateRegistry("mirror", "https://mirror.example.com/{name}/{version}"), "left-pad", "1.0.0"),
			want: "left-pad",
		},
		"vcs": {
			pkg:  FromVCS("https://example.com/owner/repo.git", "repo"),
			want: "repo",
		},
		"vcs with branch": {
			pkg:  FromVCSBranch("https://example.com/owner/repo.git", "repo", "dev"),
			want: "repo",
		},
		"local": {
			pkg:  FromLocal("/tmp/pkg", "pkg"),
			want: "pkg",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tc.pkg.Name(); got != tc.want {
				t.Errorf("Name() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := map[string]struct {
		pkg  Package
		want string
	}{
		"central registry": {
			pkg:  FromCentralRegistry("left-pad", "1.0.0"),
			want: "left-pad 1.0.0 (central registry)",
		},
		"alternate registry": {
			pkg:  FromRegistry(AlternateRegistry("mirror", "https://mirror.example.com/{name}/{version}"), "left-pad", "1.0.0"),
			want: "left-pad 1.0.0 (registry mirror)",
		},
		"vcs default branch": {
			pkg:  FromVCS("https://example.com/owner/repo.git", "repo"),
			want: "https://example.com/owner/repo.git",
		},
		"vcs branch": {
			pkg:  FromVCSBranch("https://example.com/owner/repo.git", "repo", "dev"),
			want: "https://example.com/owner/repo.git#dev",
		},
		"local": {
			pkg:  FromLocal("/tmp/pkg", "pkg"),
			want: "/tmp/pkg",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tc.pkg.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGitCommitNonVCS(t *testing.T) {
	ws := testWorkspace(t)

	tests := map[string]Package{
		"registry": FromCentralRegistry("left-pad", "1.0.0"),
		"local":    FromLocal(t.TempDir(), "pkg"),
	}

	for name, pkg := range tests {
		t.Run(name, func(t *testing.T) {
			if commit, ok := pkg.GitCommit(ws); ok || commit != "" {
				t.Errorf("GitCommit() = (%q, %v), want (\"\", false)", commit, ok)
			}
		})
	}
}

func TestCopySourceToCleansDestination(t *testing.T) {
	ws := testWorkspace(t)

	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{"Package.toml": "[package]\nname = \"a\"\n"})
	pkg := FromLocal(srcDir, "a")

	dest := filepath.Join(t.TempDir(), "build")
	writeTree(t, dest, map[string]string{"stale.txt": "leftover"})

	if err := pkg.CopySourceTo(ws, dest); err != nil {
		t.Fatalf("CopySourceTo: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !os.IsNotExist(err) {
		t.Errorf("stale.txt still present after staging")
	}
	if _, err := os.Stat(filepath.Join(dest, "Package.toml")); err != nil {
		t.Errorf("Package.toml missing after staging: %v", err)
	}
}

func TestCopySourceToReplacesPreviousPackage(t *testing.T) {
	ws := testWorkspace(t)

	dirA := t.TempDir()
	writeTree(t, dirA, map[string]string{
		"Package.toml": "[package]\nname = \"a\"\n",
		"a-only.txt":   "a",
	})
	dirB := t.TempDir()
	writeTree(t, dirB, map[string]string{
		"Package.toml": "[package]\nname = \"b\"\n",
		"b-only.txt":   "b",
	})

	dest := filepath.Join(t.TempDir(), "build")

	if err := FromLocal(dirA, "a").CopySourceTo(ws, dest); err != nil {
		t.Fatalf("staging a: %v", err)
	}
	if err := FromLocal(dirB, "b").CopySourceTo(ws, dest); err != nil {
		t.Fatalf("staging b: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "a-only.txt")); !os.IsNotExist(err) {
		t.Errorf("a-only.txt leaked into b's staged tree")
	}
	if _, err := os.Stat(filepath.Join(dest, "b-only.txt")); err != nil {
		t.Errorf("b-only.txt missing: %v", err)
	}
}
