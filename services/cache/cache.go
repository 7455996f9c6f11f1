// Package cachesvc implements core.Cache over memory, redis or a local SQLite file.
package cachesvc

import (
	"context"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"

	redisPrefix = "admissions:"
)

// Store is a core.Cache that can also be emptied.
type Store interface {
	core.Cache
	Clear(ctx context.Context) error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the configured cache. The returned closer releases its connection.
func New(conf *core.Config) (Store, io.Closer, error) {
	switch conf.Cache.Driver {
	case "", DriverMemory:
		return NewMemoryCache(), nopCloser{}, nil

	case DriverRedis:
		opts, err := redis.ParseURL(conf.Cache.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parsing redis url")
		}
		client := redis.NewClient(opts)
		if err = client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(err, "pinging redis")
		}
		return NewRedisCache(client, redisPrefix), client, nil

	case DriverSQLite:
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store := NewSQLiteCache(sqlxrepos.NewSnapshotRepository(db))
		if _, err = store.Sweep(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "sweeping expired cache entries")
		}
		return store, db, nil
	}
	return nil, nil, errors.Errorf("unknown cache driver %q", conf.Cache.Driver)
}
