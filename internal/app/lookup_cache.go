package app

import (
	"context"
	"errors"
	"fmt"

	"enrollment_sync/internal/domain/directory"
)

// SearchFunc looks up one entity by key. (nil, nil) means not found.
type SearchFunc[T any] func(ctx context.Context, key string) (*T, error)

type lookupEntry[T any] struct {
	value *T
	err   error
}

// ErrEarlierSearchFailed is returned for keys whose search already failed in
// this run. The original error is wrapped.
var ErrEarlierSearchFailed = errors.New("search failed earlier in this run")

// LookupCache memoizes searches for the lifetime of one run, misses included,
// so a key is searched at most once. Not safe for concurrent use.
type LookupCache[T any] struct {
	entries  map[string]lookupEntry[T]
	searches int
}

func NewLookupCache[T any]() *LookupCache[T] {
	return &LookupCache[T]{entries: make(map[string]lookupEntry[T])}
}

// Resolve returns the cached result for key, calling search only on the
// first request. A failed search is not retried: the first caller gets its
// error, later callers get ErrEarlierSearchFailed wrapping it.
func (c *LookupCache[T]) Resolve(ctx context.Context, key string, search SearchFunc[T]) (*T, error) {
	if e, ok := c.entries[key]; ok {
		if e.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEarlierSearchFailed, e.err)
		}
		return e.value, nil
	}
	c.searches++
	v, err := search(ctx, key)
	if err != nil {
		c.entries[key] = lookupEntry[T]{err: err}
		return nil, err
	}
	c.entries[key] = lookupEntry[T]{value: v}
	return v, nil
}

// Searches reports how many times search was invoked.
func (c *LookupCache[T]) Searches() int { return c.searches }

func (c *LookupCache[T]) Len() int { return len(c.entries) }

type CourseLookupCache = LookupCache[directory.Course]

func NewCourseLookupCache() *CourseLookupCache {
	return NewLookupCache[directory.Course]()
}
