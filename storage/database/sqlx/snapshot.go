package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a serialized view state. ExpiresAt is unix nanoseconds; 0 never expires.
type Snapshot struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	ExpiresAt int64  `db:"expires_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (s Snapshot) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && s.ExpiresAt <= now.UnixNano()
}

type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (repo SnapshotRepository) GetSnapshot(ctx context.Context, key string) (Snapshot, error) {
	var snap Snapshot
	q := `SELECT key, value, expires_at, updated_at FROM snapshots WHERE key = ?`
	if err := repo.db.GetContext(ctx, &snap, q, key); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, errors.Wrap(err, "selecting snapshot")
	}
	return snap, nil
}

func (repo SnapshotRepository) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	q := `
		INSERT INTO snapshots (key, value, expires_at, updated_at)
		VALUES (:key, :value, :expires_at, :updated_at)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, q, snap); err != nil {
		return errors.Wrap(err, "saving snapshot")
	}
	return nil
}

func (repo SnapshotRepository) DeleteSnapshots(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM snapshots WHERE key IN (?)`, keys)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting snapshots")
	}
	return nil
}

// DeleteExpired removes every snapshot expired at now and returns how many were removed.
func (repo SnapshotRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM snapshots WHERE expires_at > 0 AND expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired snapshots")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (repo SnapshotRepository) ClearSnapshots(ctx context.Context) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return errors.Wrap(err, "clearing snapshots")
	}
	return nil
}

func (repo SnapshotRepository) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM snapshots`); err != nil {
		return 0, errors.Wrap(err, "counting snapshots")
	}
	return n, nil
}
