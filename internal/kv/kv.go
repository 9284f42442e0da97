package kv

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend transport failures (connection refused, timeouts).
var ErrUnavailable = errors.New("key-value store unavailable")

// Store is a string-only persistent key-value store. There are no transactions:
// each Set replaces the whole value and the last write wins.
// Get returns ("", false, nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
