package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stashkit/internal/gha"
)

var restoreFlags struct {
	key           string
	branch        string
	baseBranch    string
	defaultBranch string
	dest          string
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the best matching stash for a key",
	Long:  `Probes the current branch, then the base branch, then the default branch, and unpacks the most recently updated stash from the first branch that has one. A miss is not a failure.`,
	RunE:  runRestore,
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreFlags.key, "key", "k", "", "logical stash key (required)")
	restoreCmd.Flags().StringVarP(&restoreFlags.branch, "branch", "b", "", "current branch ref (default: detected from the GitHub Actions env)")
	restoreCmd.Flags().StringVar(&restoreFlags.baseBranch, "base-branch", "", "PR base branch (default: detected from the GitHub Actions env)")
	restoreCmd.Flags().StringVar(&restoreFlags.defaultBranch, "default-branch", "", "repository default branch (default: detected, falls back to main)")
	restoreCmd.Flags().StringVarP(&restoreFlags.dest, "dest", "d", ".", "directory to unpack into")
	_ = restoreCmd.MarkFlagRequired("key")
}

func runRestore(cmd *cobra.Command, _ []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	branch := restoreFlags.branch
	if branch == "" {
		branch = gha.CurrentRef()
	}
	base := restoreFlags.baseBranch
	if base == "" {
		base = gha.BaseRef()
	}
	defaultBranch := restoreFlags.defaultBranch
	if defaultBranch == "" {
		defaultBranch = gha.DefaultRef()
	}

	res, err := svc.Restore(cmd.Context(), restoreFlags.key, branch, base, defaultBranch, restoreFlags.dest)
	if err != nil {
		return err
	}
	if !res.Hit {
		fmt.Println("stash miss")
		return gha.WriteOutput("cache-hit", "false")
	}

	gha.Group("stash restore", fmt.Sprintf("restored %s (id=%d, branch=%s, %d files)",
		res.Record.Name, res.Record.ID, res.Record.Branch, res.Files))
	if err := gha.WriteOutput("cache-hit", "true"); err != nil {
		return err
	}
	return gha.WriteOutput("stash-id", strconv.FormatInt(res.Record.ID, 10))
}
