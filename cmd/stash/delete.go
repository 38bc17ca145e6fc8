package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stashkit/internal/gha"
)

var deleteFlags struct {
	key    string
	branch string
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every generation of a stash",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, err := newService()
		if err != nil {
			return err
		}
		branch := deleteFlags.branch
		if branch == "" {
			branch = gha.CurrentRef()
		}
		n, err := svc.Delete(cmd.Context(), deleteFlags.key, branch)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d generation(s)\n", n)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteFlags.key, "key", "k", "", "logical stash key (required)")
	deleteCmd.Flags().StringVarP(&deleteFlags.branch, "branch", "b", "", "branch ref (default: detected from the GitHub Actions env)")
	_ = deleteCmd.MarkFlagRequired("key")
}
