package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Options tune a Client.
type Options struct {
	// Retry is how many times a failed read is retried. Writes never retry.
	Retry      int
	RetryDelay time.Duration
	Logger     *logrus.Logger
	Now        func() time.Time
}

// Client is the process-wide query cache: it deduplicates concurrent reads of
// a key, serves stale data while revalidating and notifies observers when a
// key they watch is invalidated or overwritten.
type Client struct {
	store      Store
	group      singleflight.Group
	log        *logrus.Logger
	retry      int
	retryDelay time.Duration
	now        func() time.Time

	mu        sync.Mutex
	gens      map[string]uint64
	flights   map[string]*flight
	observers map[subscriber]struct{}
}

// flight is one in-progress fetch. Invalidating its key while it runs makes
// it store its result as already stale.
type flight struct {
	key   Key
	stale bool
}

type subscriber interface {
	watchedKey() Key
	invalidated()
	updated()
}

// Query describes a cached read.
type Query[T any] struct {
	Key       Key
	Fn        func(ctx context.Context) (T, error)
	StaleTime time.Duration
	// Disabled queries never fetch and resolve to an empty, non-loading result.
	Disabled bool
}

// Result is a snapshot of a query's state.
type Result[T any] struct {
	Data       T
	IsLoading  bool // no data yet and a fetch is running
	IsFetching bool
	IsStale    bool
	Err        error
	UpdatedAt  time.Time
}

// HasData reports whether the result carries fetched or cached data.
func (r Result[T]) HasData() bool {
	return !r.UpdatedAt.IsZero()
}

func NewClient(store Store, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Client{
		store:      store,
		log:        opts.Logger,
		retry:      opts.Retry,
		retryDelay: opts.RetryDelay,
		now:        opts.Now,
		gens:       make(map[string]uint64),
		flights:    make(map[string]*flight),
		observers:  make(map[subscriber]struct{}),
	}
}

// Get resolves q: fresh cached data is returned as is, stale data is returned
// while a background refetch runs, and a miss waits for the fetch.
func Get[T any](ctx context.Context, c *Client, q Query[T]) Result[T] {
	if q.Disabled {
		return Result[T]{}
	}

	if res, ok := cached[T](ctx, c, q.Key, q.StaleTime); ok {
		if !res.IsStale {
			return res
		}
		go func() {
			if _, err := c.fetch(context.WithoutCancel(ctx), q.Key, rawFn(q.Fn)); err != nil {
				c.log.WithField("key", q.Key.String()).WithError(err).Warn("Background refetch failed")
			}
		}()
		res.IsFetching = true
		return res
	}

	return fetchResult[T](ctx, c, q.Key, rawFn(q.Fn))
}

// Fetch always goes to the source, deduplicated with any fetch already running for the key.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) Result[T] {
	if q.Disabled {
		return Result[T]{}
	}
	return fetchResult[T](ctx, c, q.Key, rawFn(q.Fn))
}

// SetData writes value under key as fresh data and notifies observers of that key.
func SetData[T any](ctx context.Context, c *Client, key Key, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, Entry{Data: raw, UpdatedAt: c.now()}); err != nil {
		return err
	}
	for _, s := range c.subscribers(func(k Key) bool { return k.Equal(key) }) {
		s.updated()
	}
	return nil
}

// Invalidate marks every entry under prefix as stale. Observers of those keys
// refetch right away; fetches already running store their result as stale.
func (c *Client) Invalidate(ctx context.Context, prefix Key) (int, error) {
	c.mu.Lock()
	for _, f := range c.flights {
		if f.key.HasPrefix(prefix) && !f.stale {
			f.stale = true
			c.gens[f.key.String()]++
		}
	}
	c.mu.Unlock()

	n, err := c.store.Invalidate(ctx, prefix)
	if err != nil {
		return n, err
	}
	c.log.WithFields(logrus.Fields{"prefix": prefix.String(), "entries": n}).Debug("Cache invalidated")

	for _, s := range c.subscribers(func(k Key) bool { return k.HasPrefix(prefix) }) {
		s.invalidated()
	}
	return n, nil
}

// Remove drops the entry for key.
func (c *Client) Remove(ctx context.Context, key Key) error {
	return c.store.Remove(ctx, key)
}

func rawFn[T any](fn func(ctx context.Context) (T, error)) func(ctx context.Context) (json.RawMessage, error) {
	return func(ctx context.Context) (json.RawMessage, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
}

// cached reads key from the store. ok is false on a miss, a store failure or
// an entry that no longer decodes.
func cached[T any](ctx context.Context, c *Client, key Key, staleTime time.Duration) (Result[T], bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.WithField("key", key.String()).WithError(err).Warn("Cache read failed")
		}
		return Result[T]{}, false
	}
	res, err := decode[T](*entry)
	if err != nil {
		c.log.WithField("key", key.String()).WithError(err).Warn("Dropping undecodable cache entry")
		return Result[T]{}, false
	}
	res.IsStale = entry.Invalidated || c.now().Sub(entry.UpdatedAt) >= staleTime
	return res, true
}

func decode[T any](entry Entry) (Result[T], error) {
	var data T
	if err := json.Unmarshal(entry.Data, &data); err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Data: data, UpdatedAt: entry.UpdatedAt, IsStale: entry.Invalidated}, nil
}

func fetchResult[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (json.RawMessage, error)) Result[T] {
	entry, err := c.fetch(ctx, key, fn)
	if err != nil {
		return Result[T]{Err: err}
	}
	res, err := decode[T](entry)
	if err != nil {
		return Result[T]{Err: fmt.Errorf("failed to decode %s: %w", key, err)}
	}
	return res
}

// fetch runs fn once per key and generation no matter how many callers ask,
// retries it on failure and stores the result. The fetch outlives ctx; only
// the wait is abandoned when ctx ends.
func (c *Client) fetch(ctx context.Context, key Key, fn func(context.Context) (json.RawMessage, error)) (Entry, error) {
	ks := key.String()

	c.mu.Lock()
	gen := c.gens[ks]
	c.mu.Unlock()
	sfKey := ks + "#" + strconv.FormatUint(gen, 10)

	ch := c.group.DoChan(sfKey, func() (interface{}, error) {
		// Registered only while running, so Invalidate never bumps the
		// generation for a fetch that already finished.
		f := &flight{key: key}
		c.mu.Lock()
		c.flights[sfKey] = f
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			if c.flights[sfKey] == f {
				delete(c.flights, sfKey)
			}
			c.mu.Unlock()
		}()

		var data json.RawMessage
		err := c.withRetry(context.WithoutCancel(ctx), key, func(ctx context.Context) error {
			var err error
			data, err = fn(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		stale := f.stale
		c.mu.Unlock()

		entry := Entry{Data: data, UpdatedAt: c.now(), Invalidated: stale}
		if err := c.store.Set(context.WithoutCancel(ctx), key, entry); err != nil {
			c.log.WithField("key", ks).WithError(err).Warn("Cache write failed")
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

func (c *Client) withRetry(ctx context.Context, key Key, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil || attempt >= c.retry {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"key":     key.String(),
			"attempt": attempt + 1,
		}).WithError(err).Debug("Retrying query")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Client) subscribe(s subscriber) {
	c.mu.Lock()
	c.observers[s] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) unsubscribe(s subscriber) {
	c.mu.Lock()
	delete(c.observers, s)
	c.mu.Unlock()
}

func (c *Client) subscribers(match func(Key) bool) []subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []subscriber
	for s := range c.observers {
		if match(s.watchedKey()) {
			out = append(out, s)
		}
	}
	return out
}
