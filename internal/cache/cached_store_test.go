package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"stashkit/internal/stash"
	"stashkit/internal/store"
)

type fakeOriginStore struct {
	mu sync.Mutex

	records map[string][]stash.Record
	nextID  int64

	listCalls   int
	uploadCalls int
	deleteCalls int
	pruneCalls  int
}

func newFakeOriginStore() *fakeOriginStore {
	return &fakeOriginStore{records: map[string][]stash.Record{}}
}

func (s *fakeOriginStore) Upload(_ context.Context, name string, payload []byte, opts store.UploadOptions) (stash.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadCalls++
	s.nextID++
	rec := stash.Record{ID: s.nextID, Name: name, SizeBytes: int64(len(payload)), UpdatedAt: time.Now(), ExpiresAt: opts.ExpiresAt}
	if opts.Overwrite {
		s.records[name] = []stash.Record{rec}
	} else {
		s.records[name] = append(s.records[name], rec)
	}
	return rec, nil
}

func (s *fakeOriginStore) Download(_ context.Context, name string, id int64) ([]byte, stash.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records[name] {
		if r.ID == id {
			return []byte{}, r, nil
		}
	}
	return nil, stash.Record{}, store.ErrNotFound
}

func (s *fakeOriginStore) List(_ context.Context, name string) ([]stash.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return append([]stash.Record(nil), s.records[name]...), nil
}

func (s *fakeOriginStore) Delete(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	n := len(s.records[name])
	delete(s.records, name)
	return n, nil
}

func (s *fakeOriginStore) Prune(_ context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCalls++
	var pruned []stash.Record
	for name, records := range s.records {
		remaining := records[:0]
		for _, r := range records {
			if r.Expired(now) && (keep == nil || !keep(r)) {
				pruned = append(pruned, r)
				continue
			}
			remaining = append(remaining, r)
		}
		s.records[name] = remaining
	}
	return pruned, nil
}

func TestCachedStoreListMemoized(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOriginStore()
	cs := NewCachedStore(origin, Config{ListTTL: time.Minute, ListMaxEntries: 8})

	if _, err := cs.Upload(ctx, "k--main", []byte("x"), store.UploadOptions{Overwrite: true}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	for i := 0; i < 3; i++ {
		records, err := cs.List(ctx, "k--main")
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if len(records) != 1 {
			t.Fatalf("list %d: want 1 record, got %d", i, len(records))
		}
	}
	if origin.listCalls != 1 {
		t.Fatalf("want exactly 1 origin list call, got %d", origin.listCalls)
	}

	m := cs.Metrics()
	if m.ListMisses != 1 || m.ListHits != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCachedStoreUploadInvalidatesList(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOriginStore()
	cs := NewCachedStore(origin, Config{ListTTL: time.Minute, ListMaxEntries: 8})

	if _, err := cs.List(ctx, "k--main"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := cs.Upload(ctx, "k--main", nil, store.UploadOptions{Overwrite: true, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	records, err := cs.List(ctx, "k--main")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stale list after upload: %+v", records)
	}
	if origin.listCalls != 2 {
		t.Fatalf("want 2 origin list calls, got %d", origin.listCalls)
	}
}

func TestCachedStoreDeleteInvalidatesList(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOriginStore()
	cs := NewCachedStore(origin, Config{ListTTL: time.Minute, ListMaxEntries: 8})

	if _, err := cs.Upload(ctx, "k--main", nil, store.UploadOptions{Overwrite: true, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := cs.List(ctx, "k--main"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := cs.Delete(ctx, "k--main"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, err := cs.List(ctx, "k--main")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("stale list after delete: %+v", records)
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRUTTL[string, int](4, 20*time.Millisecond)
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("want fresh hit, got %v %v", v, ok)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("want expiry after ttl")
	}
}
