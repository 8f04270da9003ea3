// Package cache persists fetched repository lists under a string key and
// serves them back while they are younger than a TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/models"
)

var (
	ErrNotFound = errors.New("cache entry not found")
	ErrExpired  = errors.New("cache entry expired")
	ErrCorrupt  = errors.New("cache entry corrupt")
)

// ReadError reports why Load produced no value. It always wraps one of
// ErrNotFound, ErrExpired or ErrCorrupt.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("cache read %s: %v", e.Key, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed Save or Invalidate.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("cache write %s: %v", e.Key, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Key returns the cache key for a GitHub username.
func Key(username string) string {
	return "gh_repos_" + username
}

// Entry is the persisted record. Time is unix milliseconds.
type Entry struct {
	Time  int64         `json:"time"`
	Value []models.Repo `json:"value"`
}

// Store layers TTL handling and encoding over a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

type StoreOption func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(b Backend, ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{backend: b, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Load returns the cached list for key. A nil error means the entry was
// present, decodable and younger than the TTL.
func (s *Store) Load(ctx context.Context, key string) ([]models.Repo, error) {
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ReadError{Key: key, Err: ErrNotFound}
		}
		return nil, &ReadError{Key: key, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}

	var ent Entry
	if err := json.Unmarshal(raw, &ent); err != nil {
		return nil, &ReadError{Key: key, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	if ent.Time <= 0 || ent.Value == nil {
		return nil, &ReadError{Key: key, Err: fmt.Errorf("%w: missing time or value", ErrCorrupt)}
	}

	age := s.now().Sub(time.UnixMilli(ent.Time))
	if age >= s.ttl {
		return nil, &ReadError{Key: key, Err: ErrExpired}
	}
	return ent.Value, nil
}

// Save stores repos under key, stamped with the current time.
func (s *Store) Save(ctx context.Context, key string, repos []models.Repo) error {
	if repos == nil {
		repos = []models.Repo{}
	}
	data, err := json.Marshal(Entry{Time: s.now().UnixMilli(), Value: repos})
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// Invalidate removes the entry for key. Removing a missing key is not an error.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
