package history

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/soundforge/studio/internal/config"
	"github.com/spf13/afero"
)

// OpenStore builds the backend named by cfg.Backend. SQL stores are started
// and migrated before return. The returned closer is never nil.
func OpenStore(ctx context.Context, cfg config.HistoryConfig, redisClient *redis.Client, debug bool) (Store, io.Closer, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(afero.NewOsFs(), cfg.Path), nopCloser{}, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("history: redis backend requires a redis client")
		}
		return NewRedisStore(redisClient, cfg.Namespace), nopCloser{}, nil
	case "sqlite", "postgres", "mysql":
		dsn := cfg.DSN
		if dsn == "" && cfg.Backend == "sqlite" {
			dsn = cfg.Path + ".db"
		}
		s, err := NewSQLStore(cfg.Backend, dsn, cfg.Namespace, debug)
		if err != nil {
			return nil, nil, fmt.Errorf("history: %w", err)
		}
		if err := s.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("history: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("history: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("history: unknown backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
