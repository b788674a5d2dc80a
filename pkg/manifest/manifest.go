package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the package manifest filename expected at the root of every
// staged source tree.
const FileName = "Package.toml"

var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,62}[a-zA-Z0-9])?$`)

// Manifest is the package's root descriptor file.
type Manifest struct {
	Package Info `toml:"package"`

	dir string
}

// Info holds the identifying metadata of a package.
type Info struct {
	Name        string `toml:"name"`
	Version     string `toml:"version,omitempty"`
	Description string `toml:"description,omitempty"`
	License     string `toml:"license,omitempty"`
}

// Load reads the manifest from the root of a staged source tree.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading %s in %q: %w", FileName, dir, err)
	}

	m := &Manifest{dir: dir}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s in %q: %w", FileName, dir, err)
	}
	return m, nil
}

// Dir returns the staged tree the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// Validate makes sure the manifest identifies a package.
func (m *Manifest) Validate() error {
	var err error
	if !validNameRegex.MatchString(m.Package.Name) {
		err = errors.Join(err, fmt.Errorf("package name must be max 64 characters of letters, numbers, hyphens, and underscores, and must not start or end with a hyphen or underscore"))
	}
	if len(m.Package.Description) > 1024 {
		err = errors.Join(err, fmt.Errorf("package description must be max 1024 characters"))
	}
	return err
}
