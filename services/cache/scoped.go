package cachesvc

import (
	"context"
	"time"

	"github.com/trezcool/admissions/core"
)

// Scoped prefixes every key, so that views of different users never share entries.
type Scoped struct {
	cache  core.Cache
	prefix string
}

var _ core.Cache = (*Scoped)(nil)

func NewScoped(cache core.Cache, prefix string) *Scoped {
	return &Scoped{cache: cache, prefix: prefix}
}

func (c *Scoped) Get(ctx context.Context, key string, dest interface{}) error {
	return c.cache.Get(ctx, c.prefix+key, dest)
}

func (c *Scoped) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.cache.Set(ctx, c.prefix+key, value, ttl)
}

func (c *Scoped) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = c.prefix + k
	}
	return c.cache.Delete(ctx, scoped...)
}
