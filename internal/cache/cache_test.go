package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func strPtr(s string) *string { return &s }

func sampleRepos() []models.Repo {
	return []models.Repo{
		{
			Name:        "alpha",
			HTMLURL:     "https://github.com/octocat/alpha",
			Description: strPtr("first"),
			Language:    strPtr("Go"),
			Stars:       12,
			UpdatedAt:   "2024-06-01T10:00:00Z",
		},
		{
			Name:      "beta",
			HTMLURL:   "https://github.com/octocat/beta",
			UpdatedAt: "2024-01-01T00:00:00Z",
			Archived:  true,
		},
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	file, err := NewFile(filepath.Join(t.TempDir(), "files"))
	require.NoError(t, err)
	level, err := NewLevelDB(filepath.Join(t.TempDir(), "leveldb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = level.Close() })
	return map[string]Backend{
		"memory":  NewMemory(),
		"file":    file,
		"leveldb": level,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "gh_repos_0jrm", Key("0jrm"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
			s := NewStore(b, 30*time.Minute, WithClock(clock.Now))

			require.NoError(t, s.Save(ctx, Key("octocat"), sampleRepos()))

			clock.t = clock.t.Add(29 * time.Minute)
			got, err := s.Load(ctx, Key("octocat"))
			require.NoError(t, err)
			assert.Equal(t, sampleRepos(), got)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, time.Minute)
			got, err := s.Load(ctx, Key("nobody"))
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrNotFound))

			var readErr *ReadError
			require.True(t, errors.As(err, &readErr))
			assert.Equal(t, Key("nobody"), readErr.Key)
		})
	}
}

func TestLoadExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	b := NewMemory()
	s := NewStore(b, 30*time.Minute, WithClock(clock.Now))

	require.NoError(t, s.Save(ctx, "k", sampleRepos()))

	clock.t = clock.t.Add(30 * time.Minute)
	got, err := s.Load(ctx, "k")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrExpired))

	// Expired entries are ignored, not deleted.
	_, err = b.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "{{{"},
		{name: "json array", payload: `[1, 2, 3]`},
		{name: "missing time", payload: `{"value": []}`},
		{name: "missing value", payload: `{"time": 1719835200000}`},
		{name: "wrong value type", payload: `{"time": 1719835200000, "value": "nope"}`},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMemory()
			require.NoError(t, b.Put(ctx, "k", []byte(tt.payload)))

			s := NewStore(b, time.Hour)
			got, err := s.Load(ctx, "k")
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
		})
	}
}

func TestSaveEmptyListIsAHit(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory(), time.Hour)

	require.NoError(t, s.Save(ctx, "k", nil))
	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, time.Hour)
			require.NoError(t, s.Save(ctx, "k", sampleRepos()))
			require.NoError(t, s.Invalidate(ctx, "k"))

			_, err := s.Load(ctx, "k")
			assert.True(t, errors.Is(err, ErrNotFound))

			// Invalidating again is harmless.
			assert.NoError(t, s.Invalidate(ctx, "k"))
		})
	}
}

type failingBackend struct{ *Memory }

func (failingBackend) Put(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestSaveFailureIsWriteError(t *testing.T) {
	s := NewStore(failingBackend{Memory: NewMemory()}, time.Hour)
	err := s.Save(context.Background(), "k", sampleRepos())

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "k", writeErr.Key)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDisabledNeverHits(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Disabled{}, time.Hour)

	require.NoError(t, s.Save(ctx, "k", sampleRepos()))
	_, err := s.Load(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileBackendPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, NewStore(first, time.Hour).Save(ctx, Key("octocat"), sampleRepos()))

	second, err := NewFile(dir)
	require.NoError(t, err)
	got, err := NewStore(second, time.Hour).Load(ctx, Key("octocat"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"file", "leveldb", "memory", "none"} {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{CacheBackend: name, CachePath: filepath.Join(dir, name), CacheTTL: time.Minute}
			s, err := Open(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, time.Minute, s.TTL())
			assert.NoError(t, s.Close())
		})
	}

	_, err := Open(ctx, &config.Config{CacheBackend: "redis"})
	assert.Error(t, err)
}
