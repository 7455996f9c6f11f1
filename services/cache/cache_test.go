package cachesvc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

type payload struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// testStore runs the behaviour every driver must share.
func testStore(t *testing.T, store Store, clk *clock) {
	ctx := context.Background()
	want := payload{Name: "columns", Items: []string{"L1", "L2"}}

	var got payload
	assert.Equal(t, core.ErrCacheMiss, store.Get(ctx, "missing", &got))

	require.NoError(t, store.Set(ctx, "k", want, time.Minute))
	require.NoError(t, store.Get(ctx, "k", &got))
	assert.Equal(t, want, got)

	// values are copies
	got.Items[0] = "changed"
	var again payload
	require.NoError(t, store.Get(ctx, "k", &again))
	assert.Equal(t, "L1", again.Items[0])

	require.NoError(t, store.Delete(ctx, "k", "unknown"))
	assert.Equal(t, core.ErrCacheMiss, store.Get(ctx, "k", &got))

	if clk != nil {
		require.NoError(t, store.Set(ctx, "ttl", want, time.Minute))
		require.NoError(t, store.Set(ctx, "forever", want, 0))
		clk.advance(time.Minute)
		assert.Equal(t, core.ErrCacheMiss, store.Get(ctx, "ttl", &got))
		assert.NoError(t, store.Get(ctx, "forever", &got))
	}

	require.NoError(t, store.Set(ctx, "a", want, 0))
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, core.ErrCacheMiss, store.Get(ctx, "a", &got))
}

func TestMemoryCache(t *testing.T) {
	clk := &clock{t: time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCache()
	store.now = clk.now
	testStore(t, store, clk)
}

func TestMemoryCache_sweep(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCache()
	store.now = clk.now

	for i := 0; i <= sweepThreshold; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), i, time.Second))
	}
	require.NoError(t, store.Set(ctx, "keep", 1, 0))
	assert.Equal(t, sweepThreshold+2, store.Len())

	clk.advance(time.Second)
	require.NoError(t, store.Set(ctx, "new", 1, 0))
	assert.Equal(t, 2, store.Len())
}

func TestSQLiteCache(t *testing.T) {
	conf := &core.Config{Cache: core.CacheConfig{DBPath: filepath.Join(t.TempDir(), "cache.db")}}
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	clk := &clock{t: time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)}
	store := NewSQLiteCache(sqlxrepos.NewSnapshotRepository(db))
	store.now = clk.now
	testStore(t, store, clk)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "old", 1, time.Second))
	clk.advance(2 * time.Second)
	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestNew_sqliteSweeps(t *testing.T) {
	conf := &core.Config{Cache: core.CacheConfig{Driver: DriverSQLite, DBPath: filepath.Join(t.TempDir(), "cache.db")}}
	db, err := database.Open(conf)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	past := time.Now().Add(-time.Minute).UnixNano()
	repo := sqlxrepos.NewSnapshotRepository(db)
	require.NoError(t, repo.SaveSnapshot(context.Background(), sqlxrepos.Snapshot{Key: "stale", Value: "1", ExpiresAt: past, UpdatedAt: past}))
	require.NoError(t, db.Close())

	store, closer, err := New(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })
	assert.IsType(t, &SQLiteCache{}, store)

	_, err = store.(*SQLiteCache).repo.GetSnapshot(context.Background(), "stale")
	assert.Equal(t, sqlxrepos.ErrSnapshotNotFound, err)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	testStore(t, NewRedisCache(client, "admissions-test:"), nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		conf    core.CacheConfig
		want    interface{}
		wantErr bool
	}{
		{name: "default", conf: core.CacheConfig{}, want: &MemoryCache{}},
		{name: "memory", conf: core.CacheConfig{Driver: DriverMemory}, want: &MemoryCache{}},
		{name: "sqlite", conf: core.CacheConfig{Driver: DriverSQLite, DBPath: filepath.Join(t.TempDir(), "c.db")}, want: &SQLiteCache{}},
		{name: "bad redis url", conf: core.CacheConfig{Driver: DriverRedis, RedisURL: "::"}, wantErr: true},
		{name: "unknown", conf: core.CacheConfig{Driver: "memcached"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closer, err := New(&core.Config{Cache: tt.conf})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = closer.Close() }()
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache()
	jane := NewScoped(mem, "user:jane:")
	other := NewScoped(mem, "user:max:")

	require.NoError(t, jane.Set(ctx, core.CacheKeyLeadList, []string{"L1"}, time.Minute))
	var got []string
	assert.Equal(t, core.ErrCacheMiss, other.Get(ctx, core.CacheKeyLeadList, &got))
	require.NoError(t, mem.Get(ctx, "user:jane:"+core.CacheKeyLeadList, &got))
	assert.Equal(t, []string{"L1"}, got)

	require.NoError(t, jane.Delete(ctx, core.CacheKeyLeadList, core.CacheKeyPipelineColumns))
	assert.Zero(t, mem.Len())
}
