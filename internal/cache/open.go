package cache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/surrealdb"
)

// Open builds the Store selected by cfg.CacheBackend.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.CacheBackend, err)
	}
	return NewStore(b, cfg.CacheTTL), nil
}

func openBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.CacheBackend {
	case "file":
		return NewFile(cfg.CachePath)
	case "leveldb":
		return NewLevelDB(filepath.Join(cfg.CachePath, "leveldb"))
	case "surreal":
		client, err := surrealdb.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return NewSurreal(client), nil
	case "memory":
		return NewMemory(), nil
	case "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.CacheBackend)
	}
}
