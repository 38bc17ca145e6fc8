package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired stashes (manifest pins are honored)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, err := newService()
		if err != nil {
			return err
		}
		pruned, err := svc.Prune(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		if len(pruned) == 0 {
			fmt.Println("nothing to prune")
			return nil
		}
		for _, r := range pruned {
			fmt.Printf("pruned %s (id=%d, expired %s)\n",
				r.Name, r.ID, r.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
