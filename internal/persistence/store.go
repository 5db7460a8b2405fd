package persistence

import (
	"context"
	"fmt"
	"io"

	"home-planner/internal/common/config"
	"home-planner/internal/common/database"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore builds the Store selected by persistence.driver. The returned closer
// releases any connection the store holds.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Persistence.Driver {
	case "redis":
		store := database.NewRedis(cfg.Database.Redis)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store, nil
	case "file", "":
		store, err := database.NewFileStore(cfg.Persistence.FileDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	case "memory":
		return database.NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence driver %q", cfg.Persistence.Driver)
	}
}
