package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stashkit/internal/gha"
	"stashkit/internal/stash"
)

var saveFlags struct {
	key              string
	branch           string
	workDir          string
	paths            []string
	retentionDays    int
	compressionLevel int
	overwrite        bool
	ifNoFilesFound   string
	includeHidden    bool
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Pack paths and upload them as a branch-qualified stash",
	RunE:  runSave,
}

func init() {
	def := stash.DefaultOptions()
	saveCmd.Flags().StringVarP(&saveFlags.key, "key", "k", "", "logical stash key (required)")
	saveCmd.Flags().StringVarP(&saveFlags.branch, "branch", "b", "", "branch ref (default: detected from the GitHub Actions env)")
	saveCmd.Flags().StringVarP(&saveFlags.workDir, "workdir", "w", ".", "base directory paths are relative to")
	saveCmd.Flags().StringSliceVarP(&saveFlags.paths, "path", "p", nil, "file or directory to stash (repeatable, required)")
	saveCmd.Flags().IntVar(&saveFlags.retentionDays, "retention-days", def.RetentionDays, "days until the stash expires (1-90)")
	saveCmd.Flags().IntVar(&saveFlags.compressionLevel, "compression-level", def.CompressionLevel, "gzip level (0-9)")
	saveCmd.Flags().BoolVar(&saveFlags.overwrite, "overwrite", def.Overwrite, "replace existing generations of the same name")
	saveCmd.Flags().StringVar(&saveFlags.ifNoFilesFound, "if-no-files-found", def.IfNoFilesFound, "policy when no files match: warn, error or ignore")
	saveCmd.Flags().BoolVar(&saveFlags.includeHidden, "include-hidden-files", def.IncludeHidden, "include hidden files when walking directories")
	_ = saveCmd.MarkFlagRequired("key")
	_ = saveCmd.MarkFlagRequired("path")
}

func runSave(cmd *cobra.Command, _ []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	branch := saveFlags.branch
	if branch == "" {
		branch = gha.CurrentRef()
	}
	opts := stash.Options{
		RetentionDays:    saveFlags.retentionDays,
		CompressionLevel: saveFlags.compressionLevel,
		Overwrite:        saveFlags.overwrite,
		IfNoFilesFound:   saveFlags.ifNoFilesFound,
		IncludeHidden:    saveFlags.includeHidden,
	}

	res, err := svc.Save(cmd.Context(), saveFlags.key, branch, saveFlags.workDir, saveFlags.paths, opts)
	if err != nil {
		// The action contract surfaces empty outputs on a failed upload.
		_ = gha.WriteOutput("stash-id", "")
		_ = gha.WriteOutput("stash-url", "")
		return err
	}
	if res.Skipped {
		fmt.Println("nothing to stash")
		return nil
	}

	gha.Group("stash save", fmt.Sprintf("saved %s (id=%d, %d files, %d bytes)",
		res.Record.Name, res.Record.ID, res.Files, res.Record.SizeBytes))
	if err := gha.WriteOutput("stash-id", strconv.FormatInt(res.Record.ID, 10)); err != nil {
		return err
	}
	return gha.WriteOutput("stash-url", res.Record.URL)
}
