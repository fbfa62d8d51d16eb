package query

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Store.Get when no entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// Entry is one cached query result.
type Entry struct {
	Data        json.RawMessage `json:"data"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Invalidated bool            `json:"invalidated"`
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, entry Entry) error
	// Invalidate marks every entry under prefix as stale and returns how many it marked.
	Invalidate(ctx context.Context, prefix Key) (int, error)
	Remove(ctx context.Context, key Key) error
}
