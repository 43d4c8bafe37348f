// Package cache provides the storefront's cache contract, its backends
// (in-memory, Redis, Firestore), a retrying decorator and a cache-aside helper.
package cache

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

var (
	// ErrCacheUnavailable is returned when a backend could not be reached after
	// the retry policy gave up, or failed in a way retries cannot fix.
	// It is never used to signal a miss.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrCorruptEntry is returned when a stored payload cannot be decoded.
	ErrCorruptEntry = errors.New("cache entry cannot be decoded")
)

// Cache is the contract every backend implements, local or remote.
// A miss is an Absent result with a nil error. All operations are idempotent.
type Cache interface {
	// Set stores value under key with the given policy, replacing any existing entry.
	Set(ctx context.Context, key string, value []byte, policy EntryPolicy) error
	// TryGet returns Present for an unexpired entry and Absent otherwise.
	TryGet(ctx context.Context, key string) (Result[[]byte], error)
	// Remove evicts key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	io.Closer
}

// Result distinguishes a value that was found from no value at all.
// The zero Result is Absent.
type Result[T any] struct {
	value T
	ok    bool
}

// Present wraps a found value.
func Present[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Absent returns the empty result.
func Absent[T any]() Result[T] {
	return Result[T]{}
}

// HasValue reports whether the result carries a value.
func (r Result[T]) HasValue() bool {
	return r.ok
}

// Value returns the value and true when present. When absent it returns the
// zero T and false; callers must branch on the boolean.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// MustValue returns the value or panics when the result is Absent.
func (r Result[T]) MustValue() T {
	if !r.ok {
		panic("cache: MustValue called on an absent result")
	}
	return r.value
}

// unavailable marks err as a cache outage and adds the operation and key.
func unavailable(err error, op, key string) error {
	return errors.Mark(errors.Wrapf(err, "cache %s %q", op, key), ErrCacheUnavailable)
}

// IsUnavailable reports whether err signals a cache outage.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCacheUnavailable)
}
