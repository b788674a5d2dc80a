package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit [ref]",
		Short: "Print the resolved commit of a cached VCS package",
		Long: `Prints the commit identifier the cached source of a VCS package
corresponds to. The lookup is best-effort: for registry and local packages,
or when the package isn't cached, it prints "unknown".`,
		Args: cobra.ExactArgs(1),
		RunE: runCommit,
	}
}

func runCommit(cmd *cobra.Command, args []string) error {
	pkg, err := parseRef(Cfg, args[0])
	if err != nil {
		return err
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	if commit, ok := pkg.GitCommit(ws); ok {
		fmt.Println(commit)
	} else {
		fmt.Println("unknown")
	}
	return nil
}
