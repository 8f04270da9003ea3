package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/surrealdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSurreal connects to the SurrealDB named by SURREAL_URL, or skips.
func newTestSurreal(t *testing.T) *Surreal {
	t.Helper()
	url := os.Getenv("SURREAL_URL")
	if url == "" {
		t.Skip("SURREAL_URL not set")
	}

	ctx := context.Background()
	cfg := &config.Config{
		SurrealURL:  strings.TrimSuffix(strings.TrimSuffix(url, "/"), "/rpc"),
		SurrealNS:   os.Getenv("SURREAL_NS"),
		SurrealDB:   os.Getenv("SURREAL_DB"),
		SurrealUser: os.Getenv("SURREAL_USER"),
		SurrealPass: os.Getenv("SURREAL_PASS"),
	}
	client, err := surrealdb.NewClient(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, client.InitSchema(ctx))

	s := NewSurreal(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSurrealBackend(t *testing.T) {
	ctx := context.Background()
	s := newTestSurreal(t)
	key := fmt.Sprintf("test_%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	_, err := s.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound), "missing record: %v", err)

	require.NoError(t, s.Put(ctx, key, []byte(`{"time":1,"value":[]}`)))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":1,"value":[]}`, string(got))

	require.NoError(t, s.Put(ctx, key, []byte(`{"time":2,"value":[]}`)))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":2,"value":[]}`, string(got))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, s.Delete(ctx, key), "deleting a missing record")
}

func TestSurrealStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSurreal(t)
	key := Key(fmt.Sprintf("octocat_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	store := NewStore(s, time.Hour)
	require.NoError(t, store.Save(ctx, key, sampleRepos()))

	got, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sampleRepos(), got)
}
