package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stashkit/internal/cache"
	"stashkit/internal/config"
	"stashkit/internal/manifest"
	"stashkit/internal/service"
)

var (
	version = "dev"

	cfgFile     string
	backendFlag string
)

var rootCmd = &cobra.Command{
	Use:     "stash",
	Short:   "Branch-aware stash save/restore for CI",
	Long:    `Saves and restores branch-qualified cache stashes against a configured artifact store, probing current, base and default branches in order on restore.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./stash.yaml, ~/.config/stash/stash.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "",
		"store backend: memory, postgres, s3 or http (overrides config)")

	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pruneCmd)
}

// newService builds the configured store stack for one command run.
func newService() (*service.Service, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	origin, err := cfg.BuildStore()
	if err != nil {
		return nil, nil, fmt.Errorf("build %s store: %w", cfg.Backend, err)
	}
	st := cache.NewCachedStore(origin, cache.DefaultConfig())

	var m *manifest.Manifest
	if cfg.Manifest != "" {
		m, err = manifest.Load(cfg.Manifest)
		if err != nil {
			return nil, nil, err
		}
	}

	svc, err := service.New(st, nil, m)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}
