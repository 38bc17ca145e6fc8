// Package resolver computes the branch-qualified names stashes are stored
// under and the precedence order used to find one on restore. Everything in
// this package is a pure function of its inputs; store access happens only
// through the lookup callback handed to SelectBestMatch.
package resolver

import (
	"context"
	"errors"
	"strings"

	"stashkit/internal/stash"
)

var (
	// ErrInvalidInput marks a key or branch that is empty after
	// normalization. Callers must abort before touching the store.
	ErrInvalidInput = errors.New("invalid stash input")

	// ErrNotFound means no candidate branch yielded a match. This is a
	// cache miss, not a failure.
	ErrNotFound = errors.New("stash not found")
)

// Separator joins the key and branch portions of a stash name. It is doubled
// so the boundary stays recognizable even though single dashes occur inside
// normalized segments.
const Separator = "--"

const (
	// Normalized components are bounded so a full name always fits common
	// object-key limits. The branch portion is never truncated past this,
	// so the key portion absorbs any overflow in BuildSaveName.
	maxComponentLen = 160
	maxNameLen      = 255
)

// Normalize maps free-form text to a storage-safe identifier: lowercase,
// every rune outside [a-z0-9._-] replaced with '-', dash runs collapsed,
// leading/trailing separators trimmed. Idempotent.
func Normalize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-.")
	if len(out) > maxComponentLen {
		out = strings.Trim(out[:maxComponentLen], "-.")
	}
	if out == "" {
		return "", ErrInvalidInput
	}
	return out, nil
}

// BuildSaveName returns the deterministic storage name for a key on a branch.
// On overflow the key portion is truncated; the branch portion never is.
func BuildSaveName(key, branch string) (string, error) {
	nk, err := Normalize(key)
	if err != nil {
		return "", err
	}
	nb, err := Normalize(branch)
	if err != nil {
		return "", err
	}
	if budget := maxNameLen - len(Separator) - len(nb); len(nk) > budget {
		if budget < 1 {
			budget = 1
		}
		nk = strings.Trim(nk[:budget], "-.")
		if nk == "" {
			nk = "k"
		}
	}
	return nk + Separator + nb, nil
}

// BuildSearchCandidates returns the names to probe on restore, in priority
// order: current branch, then base branch (PRs), then default branch.
// Duplicates collapse; the order is the contract — callers probe in sequence
// and stop at the first branch that yields a match.
func BuildSearchCandidates(key, currentBranch, baseBranch, defaultBranch string) ([]string, error) {
	first, err := BuildSaveName(key, currentBranch)
	if err != nil {
		return nil, err
	}
	out := []string{first}
	for _, branch := range []string{baseBranch, defaultBranch} {
		if strings.TrimSpace(branch) == "" {
			continue
		}
		name, err := BuildSaveName(key, branch)
		if err != nil {
			return nil, err
		}
		if !containsName(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Lookup fetches the live records stored under a name.
type Lookup func(ctx context.Context, name string) ([]stash.Record, error)

// SelectBestMatch probes candidates in order and returns the most recently
// updated record from the first name that has any. Ties on UpdatedAt break
// toward the highest ID, which every backend assigns monotonically. Lower
// priority candidates are never queried once a match is found, so a restore
// costs at most one lookup per candidate branch.
func SelectBestMatch(ctx context.Context, candidates []string, lookup Lookup) (stash.Record, error) {
	if lookup == nil {
		return stash.Record{}, errors.New("lookup is required")
	}
	for _, name := range candidates {
		records, err := lookup(ctx, name)
		if err != nil {
			return stash.Record{}, err
		}
		if len(records) == 0 {
			continue
		}
		best := records[0]
		for _, r := range records[1:] {
			if r.UpdatedAt.After(best.UpdatedAt) ||
				(r.UpdatedAt.Equal(best.UpdatedAt) && r.ID > best.ID) {
				best = r
			}
		}
		return best, nil
	}
	return stash.Record{}, ErrNotFound
}
