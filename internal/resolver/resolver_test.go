package resolver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stashkit/internal/stash"
)

func TestNormalizeBasics(t *testing.T) {
	got, err := Normalize("Build Cache!")
	require.NoError(t, err)
	assert.Equal(t, "build-cache", got)

	got, err = Normalize("refs/heads/Feature/X")
	require.NoError(t, err)
	assert.Equal(t, "refs-heads-feature-x", got)

	got, err = Normalize("a--b___c..d")
	require.NoError(t, err)
	assert.Equal(t, "a-b___c..d", got)
}

func TestNormalizeEmptyInputs(t *testing.T) {
	for _, raw := range []string{"", "   ", "!!!", "///", "--..--"} {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		first, err := Normalize(raw)
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidInput)
			return
		}
		second, err := Normalize(first)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestNormalizeAlphabet(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		out, err := Normalize(raw)
		if err != nil {
			return
		}
		for _, r := range out {
			ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
			assert.True(t, ok, "rune %q in %q", r, out)
		}
		assert.NotContains(t, out, "--")
	})
}

func TestBuildSaveNameDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.StringMatching(`[A-Za-z0-9 /_.-]{1,80}`).Draw(t, "key")
		branch := rapid.StringMatching(`[A-Za-z0-9 /_.-]{1,80}`).Draw(t, "branch")
		a, errA := BuildSaveName(key, branch)
		b, errB := BuildSaveName(key, branch)
		if errA != nil {
			assert.ErrorIs(t, errA, ErrInvalidInput)
			assert.ErrorIs(t, errB, ErrInvalidInput)
			return
		}
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	})
}

func TestBuildSaveNameScenario(t *testing.T) {
	name, err := BuildSaveName("Build Cache!", "refs/heads/Feature/X")
	require.NoError(t, err)
	assert.Equal(t, "build-cache--refs-heads-feature-x", name)
}

func TestBuildSaveNameTruncatesKeyNotBranch(t *testing.T) {
	key := strings.Repeat("k", 300)
	branch := "refs/heads/main"
	name, err := BuildSaveName(key, branch)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(name), 255)
	assert.True(t, strings.HasSuffix(name, Separator+"refs-heads-main"))
}

func TestBuildSaveNameEmptyParts(t *testing.T) {
	_, err := BuildSaveName("", "main")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = BuildSaveName("key", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildSearchCandidatesDedup(t *testing.T) {
	got, err := BuildSearchCandidates("k", "feature/x", "main", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"k--feature-x", "k--main"}, got)

	got, err = BuildSearchCandidates("k", "main", "main", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"k--main"}, got)

	got, err = BuildSearchCandidates("k", "feature/x", "develop", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"k--feature-x", "k--develop", "k--main"}, got)
}

func TestBuildSearchCandidatesNoBase(t *testing.T) {
	got, err := BuildSearchCandidates("k", "feature/x", "", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"k--feature-x", "k--main"}, got)
}

func TestSelectBestMatchPrecedence(t *testing.T) {
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	calls := map[string]int{}
	lookup := func(_ context.Context, name string) ([]stash.Record, error) {
		calls[name]++
		switch name {
		case "a":
			return nil, nil
		case "b":
			return []stash.Record{
				{ID: 1, Name: "b", UpdatedAt: t1},
				{ID: 2, Name: "b", UpdatedAt: t2},
			}, nil
		}
		t.Fatalf("unexpected lookup for %q", name)
		return nil, nil
	}

	best, err := SelectBestMatch(context.Background(), []string{"a", "b", "c"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, int64(2), best.ID)
	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 1, calls["b"])
	assert.Zero(t, calls["c"], "lower priority candidates must not be queried after a match")
}

func TestSelectBestMatchTieBreaksOnID(t *testing.T) {
	now := time.Now()
	lookup := func(_ context.Context, _ string) ([]stash.Record, error) {
		return []stash.Record{
			{ID: 9, UpdatedAt: now},
			{ID: 5, UpdatedAt: now},
		}, nil
	}
	best, err := SelectBestMatch(context.Background(), []string{"x"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, int64(9), best.ID)
}

func TestSelectBestMatchNotFound(t *testing.T) {
	lookup := func(_ context.Context, _ string) ([]stash.Record, error) { return nil, nil }
	_, err := SelectBestMatch(context.Background(), []string{"a", "b"}, lookup)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelectBestMatchPropagatesLookupErrors(t *testing.T) {
	boom := assert.AnError
	lookup := func(_ context.Context, _ string) ([]stash.Record, error) { return nil, boom }
	_, err := SelectBestMatch(context.Background(), []string{"a"}, lookup)
	assert.ErrorIs(t, err, boom)
}
