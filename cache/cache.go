// Package cache provides the process-wide result cache used by the policy
// search tools.
//
// Information Hiding:
// - Backend storage (in-memory map or Redis) hidden behind Cache
// - Key normalization rules hidden behind Key
// - Races on the same key are tolerated: concurrent misses may both compute
//   and both write, which only duplicates work

package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a string key/value store. Lookups that fail for any reason are
// reported as misses; writes are best-effort.
type Cache interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string)
}

// Entry is a single cached value.
type Entry struct {
	Key       string
	Value     string
	CreatedAt time.Time
}

// Key builds a deterministic cache key from a namespace (usually a tool name)
// and its inputs. Inputs are lowercased, trimmed and whitespace-collapsed so
// that "Knee  MRI" and "knee mri" share an entry.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(strings.Join(strings.Fields(strings.ToLower(p)), " "))
	}
	return b.String()
}

// URLKey builds a cache key for a document URL. Only surrounding whitespace
// is trimmed; paths and query strings are case sensitive.
func URLKey(namespace, pageURL string) string {
	return namespace + "|" + strings.TrimSpace(pageURL)
}

// ComputeFunc produces a value on a miss. Returning cacheable=false hands the
// value back to the caller without storing it (used for error strings).
type ComputeFunc func(ctx context.Context) (value string, cacheable bool)

// GetOrCompute returns the cached value for key, or computes, stores (when
// cacheable) and returns a fresh one.
func GetOrCompute(ctx context.Context, c Cache, key string, compute ComputeFunc) string {
	if c == nil {
		value, _ := compute(ctx)
		return value
	}
	if value, ok := c.Get(ctx, key); ok {
		return value
	}
	value, cacheable := compute(ctx)
	if cacheable {
		c.Set(ctx, key, value)
	}
	return value
}

// Observed wraps a Cache and reports every lookup outcome to observe.
func Observed(c Cache, observe func(hit bool)) Cache {
	return &observed{Cache: c, observe: observe}
}

type observed struct {
	Cache
	observe func(hit bool)
}

func (o *observed) Get(ctx context.Context, key string) (string, bool) {
	value, ok := o.Cache.Get(ctx, key)
	if o.observe != nil {
		o.observe(ok)
	}
	return value, ok
}
