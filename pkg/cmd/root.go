package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stagepkg/stagepkg/pkg/config"
	"github.com/stagepkg/stagepkg/pkg/workspace"
)

var (
	flagWorkspace string
	flagCentralDL string
	flagOffline   bool

	// Cfg holds the resolved configuration, available to all subcommands
	// after PersistentPreRunE completes.
	Cfg *config.Config
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stagepkg",
		Short: "Package source staging for sandboxed builds",
		Long:  "stagepkg resolves package source descriptors (registry, git, or local) into cached, repeatedly re-stageable source trees for sandboxed compilation and analysis.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagCentralDL, flagOffline)
			if err != nil {
				return err
			}
			Cfg = cfg
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "workspace root directory (default ~/.stagepkg)")
	root.PersistentFlags().StringVar(&flagCentralDL, "registry-dl", "", "central registry download endpoint template")
	root.PersistentFlags().BoolVar(&flagOffline, "offline", false, "never touch the network; stage from cache only")

	root.AddCommand(newFetchCmd())
	root.AddCommand(newStageCmd())
	root.AddCommand(newPurgeCmd())
	root.AddCommand(newCommitCmd())

	return root
}

// resolveWorkspace opens the workspace selected by --workspace, falling back
// to the default under the home directory.
func resolveWorkspace() (workspace.Workspace, error) {
	if flagWorkspace != "" {
		return workspace.New(flagWorkspace), nil
	}
	return workspace.Default()
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
