// Package database is the local SQLite store backing the persistent cache.
package database

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/trezcool/admissions/core"
	appfs "github.com/trezcool/admissions/fs"
)

const driverName = "sqlite"

var gooseRunFunc = goose.RunFS

// Open opens (creating it if needed) the SQLite file at conf.Cache.DBPath.
// ":memory:" is accepted and keeps a single connection so every query sees the same database.
func Open(conf *core.Config) (*sqlx.DB, error) {
	path := conf.Cache.DBPath
	if path == "" {
		return nil, errors.New("cache db path is not configured")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "creating cache db directory")
			}
		}
	}

	db, err := sqlx.Open(driverName, dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(1) // sqlite allows a single writer
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// ping waits for the database to be ready. Waits 50ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 5
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 50 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sqlx.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := gooseRunFunc("up", db.DB, appfs.FS, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
