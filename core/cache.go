package core

import (
	"context"
	"errors"
	"time"
)

// Cache keys shared by the views. Only the default (unfiltered) leads list is ever cached.
const (
	CacheKeyLeadList        = "leads:list"
	CacheKeyPipelineColumns = "pipeline:columns"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is an explicit, JSON-valued key/value cache with TTLs.
// It replaces view state mirrored into browser local storage; entries are invalidated on
// successful mutations and never written for filtered views.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
