package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stashkit/internal/stash"
)

type memoryEntry struct {
	record  stash.Record
	payload []byte
}

// MemoryStore keeps stashes in process memory. It is the reference backend
// for tests and single-process runs.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string][]memoryEntry
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byName: make(map[string][]memoryEntry)}
}

func (s *MemoryStore) Upload(_ context.Context, name string, payload []byte, opts UploadOptions) (stash.Record, error) {
	if s == nil {
		return stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return stash.Record{}, fmt.Errorf("name is required")
	}
	if payload == nil {
		payload = []byte{}
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := stash.Record{
		ID:        s.nextID,
		Name:      name,
		Key:       opts.Key,
		Branch:    opts.Branch,
		SizeBytes: int64(len(payload)),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: opts.ExpiresAt,
	}
	entry := memoryEntry{record: rec, payload: append([]byte(nil), payload...)}
	if opts.Overwrite {
		s.byName[name] = []memoryEntry{entry}
	} else {
		s.byName[name] = append(s.byName[name], entry)
	}
	return rec, nil
}

func (s *MemoryStore) Download(_ context.Context, name string, id int64) ([]byte, stash.Record, error) {
	if s == nil {
		return nil, stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, stash.Record{}, fmt.Errorf("name is required")
	}
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.byName[name] {
		if e.record.ID != id {
			continue
		}
		if e.record.Expired(now) {
			break
		}
		return append([]byte(nil), e.payload...), e.record, nil
	}
	return nil, stash.Record{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, name string) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stash.Record, 0, len(s.byName[name]))
	for _, e := range s.byName[name] {
		if e.record.Expired(now) {
			continue
		}
		out = append(out, e.record)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.byName[name])
	delete(s.byName, name)
	return n, nil
}

func (s *MemoryStore) Prune(_ context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned []stash.Record
	for name, entries := range s.byName {
		remaining := entries[:0]
		for _, e := range entries {
			if e.record.Expired(now) && (keep == nil || !keep(e.record)) {
				pruned = append(pruned, e.record)
				continue
			}
			remaining = append(remaining, e)
		}
		if len(remaining) == 0 {
			delete(s.byName, name)
		} else {
			s.byName[name] = remaining
		}
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].ID < pruned[j].ID })
	return pruned, nil
}
