package cache

import (
	"context"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/surrealdb"
)

// Surreal adapts a SurrealDB client to Backend.
type Surreal struct {
	client *surrealdb.Client
}

func NewSurreal(client *surrealdb.Client) *Surreal {
	return &Surreal{client: client}
}

func (s *Surreal) Get(ctx context.Context, key string) ([]byte, error) {
	payload, found, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (s *Surreal) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Put(ctx, key, value)
}

func (s *Surreal) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, key)
}

func (s *Surreal) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Close(ctx)
}
