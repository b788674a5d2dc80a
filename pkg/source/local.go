package source

import (
	"context"
	"fmt"
	"os"

	"github.com/stagepkg/stagepkg/pkg/workspace"
)

// localDir is the backend for packages that already reside in a caller-owned
// directory. Nothing is ever cached for it: fetch and purge are vacuous and
// never touch the filesystem, and copies read straight from the source path.
type localDir struct {
	path string
	name string
}

var _ backend = &localDir{}

func (*localDir) fetch(context.Context, workspace.Workspace) error {
	return nil
}

func (*localDir) purgeFromCache(workspace.Workspace) error {
	return nil
}

func (l *localDir) copySourceTo(ws workspace.Workspace, dest string) error {
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: local source path %s does not exist", ErrNotFound, l.path)
		}
		return fmt.Errorf("checking local source path %s: %w", l.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: local source path %s is not a directory", ErrNotFound, l.path)
	}

	return ws.CopyDir(l.path, dest, nil)
}

func (l *localDir) String() string {
	return l.path
}
