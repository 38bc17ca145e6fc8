package stash

import (
	"fmt"
	"strings"
	"time"
)

// IfNoFilesFound policies for a save whose path set matched nothing.
const (
	NoFilesWarn   = "warn"
	NoFilesError  = "error"
	NoFilesIgnore = "ignore"
)

// Record describes one stored stash generation. Records are owned by the
// store; everything here is populated by the backend that holds the payload.
type Record struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Branch    string    `json:"branch"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"url,omitempty"`
}

// Expired reports whether the record is past its expiry at the given time.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Options control a save operation.
type Options struct {
	RetentionDays    int
	CompressionLevel int
	Overwrite        bool
	IfNoFilesFound   string
	IncludeHidden    bool
}

func DefaultOptions() Options {
	return Options{
		RetentionDays:    5,
		CompressionLevel: 6,
		Overwrite:        true,
		IfNoFilesFound:   NoFilesWarn,
	}
}

func (o Options) Validate() error {
	if o.RetentionDays < 1 || o.RetentionDays > 90 {
		return fmt.Errorf("retention days must be in [1,90], got %d", o.RetentionDays)
	}
	if o.CompressionLevel < 0 || o.CompressionLevel > 9 {
		return fmt.Errorf("compression level must be in [0,9], got %d", o.CompressionLevel)
	}
	switch strings.TrimSpace(o.IfNoFilesFound) {
	case NoFilesWarn, NoFilesError, NoFilesIgnore:
	default:
		return fmt.Errorf("if-no-files-found must be warn, error or ignore, got %q", o.IfNoFilesFound)
	}
	return nil
}

// ExpiryFrom computes the expiry for a stash saved at now.
// Retention is counted in whole days.
func (o Options) ExpiryFrom(now time.Time) time.Time {
	days := o.RetentionDays
	if days < 1 {
		days = 1
	}
	return now.Add(time.Duration(days) * 24 * time.Hour)
}
