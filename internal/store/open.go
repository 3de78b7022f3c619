package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"studentattendance/internal/attendance"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and locates a backend.
type Options struct {
	Backend     string
	DataDir     string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string
}

// Open returns the configured store. SQL backends are migrated before use.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (attendance.Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		s, err := OpenFile(opts.DataDir, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		db, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, db, DialectSQLite)
	case BackendPostgres:
		db, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, db, DialectPostgres)
	case BackendRedis:
		client := NewRedisClient(opts.RedisAddr)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client, opts.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

func migrated(ctx context.Context, db *sql.DB, dialect Dialect) (attendance.Store, error) {
	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, dialect), nil
}
