package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagepkg/stagepkg/pkg/stager"
)

func newStageCmd() *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage [ref]",
		Short: "Fetch packages and stage their source trees for building",
		Long: `Fetches one or more package sources and materializes each source tree
into its build directory under the workspace (or --dest for a single
package). Existing content at the destination is removed first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStage,
	}

	stageCmd.Flags().StringP("file", "f", "", "YAML job list of packages to stage")
	stageCmd.Flags().String("dest", "", "stage a single package into this directory")
	stageCmd.Flags().Bool("skip-validate", false, "do not require a package manifest in the staged tree")

	return stageCmd
}

func runStage(cmd *cobra.Command, args []string) error {
	pkgs, err := packagesFromArgs(cmd, args)
	if err != nil {
		return err
	}

	dest, err := cmd.Flags().GetString("dest")
	if err != nil {
		return err
	}
	if dest != "" && len(pkgs) != 1 {
		return fmt.Errorf("--dest only applies to a single package")
	}

	skipValidate, err := cmd.Flags().GetBool("skip-validate")
	if err != nil {
		return err
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	st := &stager.Stager{
		Workspace:    ws,
		Workers:      Cfg.WorkerCount(),
		Offline:      Cfg.Offline,
		SkipValidate: skipValidate,
	}

	var results []stager.Result
	if dest != "" {
		res, err := st.Stage(cmd.Context(), pkgs[0], dest)
		if err != nil {
			return err
		}
		results = []stager.Result{res}
	} else {
		results, err = st.StageAll(cmd.Context(), pkgs)
		if err != nil {
			return err
		}
	}

	for _, res := range results {
		line := fmt.Sprintf("staged %s -> %s", res.Package, res.Dest)
		if res.Commit != "" {
			line += fmt.Sprintf(" (commit %s)", res.Commit)
		}
		fmt.Println(line)
	}
	return nil
}
