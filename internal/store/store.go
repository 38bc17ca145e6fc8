package store

import (
	"context"
	"errors"
	"time"

	"stashkit/internal/stash"
)

// ErrNotFound is returned when a name or generation has no live record.
var ErrNotFound = errors.New("stash not found")

// UploadOptions carry the record fields the caller derives before upload.
type UploadOptions struct {
	Key       string
	Branch    string
	Overwrite bool
	ExpiresAt time.Time
}

// Store defines operations for persisting stash payloads. A name may hold
// several generations (overwrite=false appends); expired generations are
// invisible to List and Download and reclaimed by Prune.
type Store interface {
	Upload(ctx context.Context, name string, payload []byte, opts UploadOptions) (stash.Record, error)
	Download(ctx context.Context, name string, id int64) ([]byte, stash.Record, error)
	List(ctx context.Context, name string) ([]stash.Record, error)
	Delete(ctx context.Context, name string) (int, error)
	Prune(ctx context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error)
}
