package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/stagepkg/stagepkg/pkg/stager"
)

func newPurgeCmd() *cobra.Command {
	purgeCmd := &cobra.Command{
		Use:   "purge [ref]",
		Short: "Remove cached package sources from the workspace",
		Long: `Removes the cached sources of one or more packages. Purging a package
that isn't cached does nothing. Previously staged build directories are
left untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPurge,
	}

	purgeCmd.Flags().StringP("file", "f", "", "YAML job list of packages to purge")
	purgeCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	return purgeCmd
}

func runPurge(cmd *cobra.Command, args []string) error {
	pkgs, err := packagesFromArgs(cmd, args)
	if err != nil {
		return err
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}

	if !yes {
		confirmed, err := confirmPurge(len(pkgs))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("aborted")
			return nil
		}
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	st := &stager.Stager{Workspace: ws}
	return st.Purge(pkgs)
}

// confirmPurge uses huh to ask before deleting cached sources.
func confirmPurge(count int) (bool, error) {
	var confirmed bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Purge cached sources for %d package(s)?", count)).
				Value(&confirmed),
		),
	).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}
