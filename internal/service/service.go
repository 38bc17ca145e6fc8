// Package service orchestrates stash save, restore and prune on top of a
// store backend. Input validation happens before any store call; a restore
// miss is a normal outcome, not an error.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stashkit/internal/archive"
	"stashkit/internal/manifest"
	"stashkit/internal/resolver"
	"stashkit/internal/stash"
	"stashkit/internal/store"
	"stashkit/internal/watch"
)

type Service struct {
	store    store.Store
	hub      *watch.Hub
	manifest *manifest.Manifest
}

// New wires a service. hub and m may be nil.
func New(st store.Store, hub *watch.Hub, m *manifest.Manifest) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Service{store: st, hub: hub, manifest: m}, nil
}

type SaveResult struct {
	Record  stash.Record
	Files   int
	Skipped bool
}

// Save packs paths (relative to workDir) and uploads them under the
// branch-qualified name for key. An empty path set follows the
// IfNoFilesFound policy and never reaches the store.
func (s *Service) Save(ctx context.Context, key, branch, workDir string, paths []string, opts stash.Options) (SaveResult, error) {
	if err := opts.Validate(); err != nil {
		return SaveResult{}, err
	}
	name, err := resolver.BuildSaveName(key, branch)
	if err != nil {
		return SaveResult{}, err
	}

	payload, files, err := archive.Pack(workDir, paths, opts.CompressionLevel, opts.IncludeHidden)
	if err != nil {
		return SaveResult{}, fmt.Errorf("pack stash: %w", err)
	}
	if files == 0 {
		switch opts.IfNoFilesFound {
		case stash.NoFilesError:
			return SaveResult{}, fmt.Errorf("no files found for stash %s", name)
		case stash.NoFilesWarn:
			log.Printf("stash save %s: no files found, skipping upload", name)
		}
		return SaveResult{Skipped: true}, nil
	}

	normKey, err := resolver.Normalize(key)
	if err != nil {
		return SaveResult{}, err
	}
	normBranch, err := resolver.Normalize(branch)
	if err != nil {
		return SaveResult{}, err
	}

	rec, err := s.store.Upload(ctx, name, payload, store.UploadOptions{
		Key:       normKey,
		Branch:    normBranch,
		Overwrite: opts.Overwrite,
		ExpiresAt: opts.ExpiryFrom(time.Now()),
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("upload stash %s: %w", name, err)
	}
	s.publish(watch.EventSaved, name, &rec)
	return SaveResult{Record: rec, Files: files}, nil
}

type RestoreResult struct {
	Hit    bool
	Record stash.Record
	Files  int
}

// Restore probes the current, base and default branches in order, issuing
// at most one list query per branch, and unpacks the best match into dest.
// A miss returns Hit=false with a nil error.
func (s *Service) Restore(ctx context.Context, key, currentBranch, baseBranch, defaultBranch, dest string) (RestoreResult, error) {
	candidates, err := resolver.BuildSearchCandidates(key, currentBranch, baseBranch, defaultBranch)
	if err != nil {
		return RestoreResult{}, err
	}

	best, err := resolver.SelectBestMatch(ctx, candidates, s.store.List)
	if errors.Is(err, resolver.ErrNotFound) {
		return RestoreResult{}, nil
	}
	if err != nil {
		return RestoreResult{}, err
	}

	payload, rec, err := s.store.Download(ctx, best.Name, best.ID)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("download stash %s: %w", best.Name, err)
	}
	files, err := archive.Unpack(payload, dest)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("unpack stash %s: %w", best.Name, err)
	}
	s.publish(watch.EventRestored, rec.Name, &rec)
	return RestoreResult{Hit: true, Record: rec, Files: files}, nil
}

// List returns the live generations stored under the name for key+branch.
func (s *Service) List(ctx context.Context, key, branch string) ([]stash.Record, error) {
	name, err := resolver.BuildSaveName(key, branch)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, name)
}

// Delete removes every generation of key+branch and reports the count.
func (s *Service) Delete(ctx context.Context, key, branch string) (int, error) {
	name, err := resolver.BuildSaveName(key, branch)
	if err != nil {
		return 0, err
	}
	n, err := s.store.Delete(ctx, name)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(watch.EventDeleted, name, nil)
	}
	return n, nil
}

// Prune removes expired stashes, honoring manifest pins, and applies any
// manifest-scheduled removals whose date has passed.
func (s *Service) Prune(ctx context.Context, now time.Time) ([]stash.Record, error) {
	var keep func(stash.Record) bool
	if s.manifest != nil {
		keep = func(r stash.Record) bool { return s.manifest.Keep(r.Name) }
	}
	pruned, err := s.store.Prune(ctx, now, keep)
	if err != nil {
		return pruned, err
	}
	for i := range pruned {
		s.publish(watch.EventPruned, pruned[i].Name, &pruned[i])
	}

	if s.manifest != nil {
		expired := s.manifest.ExpiredNames(now)
		for _, name := range expired {
			if _, err := s.store.Delete(ctx, name); err != nil {
				return pruned, err
			}
			s.publish(watch.EventDeleted, name, nil)
		}
		if len(expired) > 0 {
			s.manifest.Remove(expired...)
			if err := s.manifest.Save(); err != nil {
				return pruned, fmt.Errorf("save manifest: %w", err)
			}
		}
	}
	return pruned, nil
}

func (s *Service) publish(eventType, name string, rec *stash.Record) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(watch.NewEvent(eventType, name, rec))
}
