package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stashkit/internal/gha"
)

var listFlags struct {
	key    string
	branch string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live generations of a stash",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, err := newService()
		if err != nil {
			return err
		}
		branch := listFlags.branch
		if branch == "" {
			branch = gha.CurrentRef()
		}
		records, err := svc.List(cmd.Context(), listFlags.key, branch)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no stashes")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%d\t%s\t%d bytes\tupdated %s\texpires %s\n",
				r.ID, r.Name, r.SizeBytes,
				r.UpdatedAt.Format("2006-01-02 15:04:05"),
				r.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFlags.key, "key", "k", "", "logical stash key (required)")
	listCmd.Flags().StringVarP(&listFlags.branch, "branch", "b", "", "branch ref (default: detected from the GitHub Actions env)")
	_ = listCmd.MarkFlagRequired("key")
}
