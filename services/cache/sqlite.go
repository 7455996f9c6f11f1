package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

// SnapshotRepository persists serialized values; see sqlxrepos.SnapshotRepository.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, key string) (sqlxrepos.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap sqlxrepos.Snapshot) error
	DeleteSnapshots(ctx context.Context, keys ...string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ClearSnapshots(ctx context.Context) error
}

// SQLiteCache keeps view state across CLI runs.
type SQLiteCache struct {
	repo SnapshotRepository
	now  func() time.Time
}

var _ core.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(repo SnapshotRepository) *SQLiteCache {
	return &SQLiteCache{repo: repo, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, key string, dest interface{}) error {
	snap, err := c.repo.GetSnapshot(ctx, key)
	if err != nil {
		if err == sqlxrepos.ErrSnapshotNotFound {
			return core.ErrCacheMiss
		}
		return err
	}
	if snap.Expired(c.now()) {
		_ = c.repo.DeleteSnapshots(ctx, key)
		return core.ErrCacheMiss
	}
	return errors.Wrap(json.Unmarshal([]byte(snap.Value), dest), "decoding cached value")
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding cached value")
	}
	now := c.now()
	snap := sqlxrepos.Snapshot{Key: key, Value: string(data), UpdatedAt: now.UnixNano()}
	if ttl > 0 {
		snap.ExpiresAt = now.Add(ttl).UnixNano()
	}
	return c.repo.SaveSnapshot(ctx, snap)
}

func (c *SQLiteCache) Delete(ctx context.Context, keys ...string) error {
	return c.repo.DeleteSnapshots(ctx, keys...)
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	return c.repo.ClearSnapshots(ctx)
}

// Sweep drops expired snapshots.
func (c *SQLiteCache) Sweep(ctx context.Context) (int64, error) {
	return c.repo.DeleteExpired(ctx, c.now())
}
