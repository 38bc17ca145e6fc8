// Package manifest tracks per-stash retention overrides in a YAML file, so
// a repository can pin stashes past the store's retention window or schedule
// them for removal at an explicit date.
package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is the retention override for one stash name.
type Entry struct {
	ExpiresAt time.Time `yaml:"expires_at"`
	Keep      bool      `yaml:"keep,omitempty"`
}

// Manifest maps stash names to retention overrides.
type Manifest struct {
	path    string
	Entries map[string]Entry `yaml:"stashes"`
}

// Load reads a manifest from path. A missing file yields an empty manifest
// bound to that path.
func Load(path string) (*Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	m := &Manifest{path: path, Entries: map[string]Entry{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Entries == nil {
		m.Entries = map[string]Entry{}
	}
	return m, nil
}

// Save writes the manifest back to its path.
func (m *Manifest) Save() error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	raw, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, raw, 0o644)
}

// Extend sets a stash's expiry to n weeks from today.
func (m *Manifest) Extend(name string, weeks int) {
	if m == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if weeks < 1 {
		weeks = 4
	}
	e := m.Entries[name]
	e.ExpiresAt = time.Now().AddDate(0, 0, 7*weeks)
	m.Entries[name] = e
}

// Keep reports whether a stash is pinned against pruning.
func (m *Manifest) Keep(name string) bool {
	if m == nil {
		return false
	}
	return m.Entries[name].Keep
}

// ExpiredNames returns the names whose manifest expiry has passed and that
// are not pinned, sorted for stable output.
func (m *Manifest) ExpiredNames(now time.Time) []string {
	if m == nil {
		return nil
	}
	var out []string
	for name, e := range m.Entries {
		if e.Keep || e.ExpiresAt.IsZero() {
			continue
		}
		if now.After(e.ExpiresAt) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Remove drops entries for the given names.
func (m *Manifest) Remove(names ...string) {
	if m == nil {
		return
	}
	for _, name := range names {
		delete(m.Entries, name)
	}
}
