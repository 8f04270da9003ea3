package surrealdb

import (
	"context"
	"fmt"

	"github.com/kevinmichaelchen/repofeed/internal/config"
	sdk "github.com/surrealdb/surrealdb.go"
)

// Client stores opaque cache payloads in the `cache` table, one record per key.
type Client struct {
	db *sdk.DB
}

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := sdk.FromEndpointURLString(ctx, cfg.SurrealURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, sdk.Auth{
		Namespace: cfg.SurrealNS,
		Database:  cfg.SurrealDB,
		Username:  cfg.SurrealUser,
		Password:  cfg.SurrealPass,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if err := db.Use(ctx, cfg.SurrealNS, cfg.SurrealDB); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("selecting ns/db: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
DEFINE TABLE IF NOT EXISTS cache SCHEMAFULL;

DEFINE FIELD IF NOT EXISTS payload   ON TABLE cache TYPE string;
DEFINE FIELD IF NOT EXISTS stored_at ON TABLE cache TYPE datetime;
`
	_, err := sdk.Query[any](ctx, c.db, schema, nil)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

type cacheRow struct {
	Payload string `json:"payload"`
}

// Get returns the payload stored under key. found is false when no record
// exists.
func (c *Client) Get(ctx context.Context, key string) (payload []byte, found bool, err error) {
	results, err := sdk.Query[[]cacheRow](ctx, c.db,
		`SELECT payload FROM type::thing("cache", $id)`,
		map[string]any{"id": key})
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	if len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false, nil
	}
	return []byte((*results)[0].Result[0].Payload), true, nil
}

func (c *Client) Put(ctx context.Context, key string, payload []byte) error {
	_, err := sdk.Query[any](ctx, c.db,
		`UPSERT type::thing("cache", $id) CONTENT { payload: $payload, stored_at: time::now() }`,
		map[string]any{
			"id":      key,
			"payload": string(payload),
		})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := sdk.Query[any](ctx, c.db,
		`DELETE type::thing("cache", $id)`,
		map[string]any{"id": key})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
