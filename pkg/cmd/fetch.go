package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagepkg/stagepkg/pkg/joblist"
	"github.com/stagepkg/stagepkg/pkg/source"
)

func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [ref]",
		Short: "Fetch package sources into the workspace cache",
		Long: `Fetches one or more package sources into the workspace cache without
staging them. A ref is a registry coordinate ([registry/]name@version), a
repository URL with an optional #branch suffix, or a local path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFetch,
	}

	fetchCmd.Flags().StringP("file", "f", "", "YAML job list of packages to fetch")

	return fetchCmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	if Cfg.Offline {
		return fmt.Errorf("cannot fetch in offline mode")
	}

	pkgs, err := packagesFromArgs(cmd, args)
	if err != nil {
		return err
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	for _, pkg := range pkgs {
		unlock, err := ws.Lock(pkg.String())
		if err != nil {
			return err
		}
		err = pkg.Fetch(cmd.Context(), ws)
		unlock()
		if err != nil {
			return fmt.Errorf("fetching %s: %w", pkg, err)
		}
		fmt.Printf("fetched %s\n", pkg)
	}
	return nil
}

// packagesFromArgs resolves the package set from either a positional ref or a
// --file job list.
func packagesFromArgs(cmd *cobra.Command, args []string) ([]source.Package, error) {
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, err
	}

	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either a ref or --file, not both")
	case file != "":
		return joblist.Load(file, Cfg)
	case len(args) == 1:
		pkg, err := parseRef(Cfg, args[0])
		if err != nil {
			return nil, err
		}
		return []source.Package{pkg}, nil
	default:
		return nil, fmt.Errorf("a ref or --file is required")
	}
}
