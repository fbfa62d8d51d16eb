package query

import (
	"context"
	"sync"
)

// Observer keeps a live Result for one query and reports every change to its
// callback. It refetches when its key is invalidated and picks up data written
// with SetData. Results that arrive after Close are dropped.
type Observer[T any] struct {
	c        *Client
	q        Query[T]
	onChange func(Result[T])
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	result Result[T]
	seq    uint64
	closed bool
}

// Observe subscribes to q and starts loading it. onChange may be nil.
func Observe[T any](ctx context.Context, c *Client, q Query[T], onChange func(Result[T])) *Observer[T] {
	ctx, cancel := context.WithCancel(ctx)
	o := &Observer[T]{c: c, q: q, onChange: onChange, ctx: ctx, cancel: cancel}
	if q.Disabled {
		return o
	}
	c.subscribe(o)

	if res, ok := cached[T](ctx, c, q.Key, q.StaleTime); ok {
		if !res.IsStale {
			o.set(0, res)
			return o
		}
		o.startFetch(res)
		return o
	}
	o.startFetch(Result[T]{})
	return o
}

// Result returns the latest snapshot.
func (o *Observer[T]) Result() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Refetch fetches again regardless of freshness, keeping current data visible meanwhile.
func (o *Observer[T]) Refetch() {
	if o.q.Disabled {
		return
	}
	o.startFetch(o.Result())
}

// Close stops observing.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
	o.c.unsubscribe(o)
}

func (o *Observer[T]) watchedKey() Key { return o.q.Key }

func (o *Observer[T]) invalidated() { o.Refetch() }

func (o *Observer[T]) updated() {
	if res, ok := cached[T](o.ctx, o.c, o.q.Key, o.q.StaleTime); ok {
		o.mu.Lock()
		o.seq++
		seq := o.seq
		o.mu.Unlock()
		o.set(seq, res)
	}
}

func (o *Observer[T]) startFetch(current Result[T]) {
	current.IsFetching = true
	current.IsLoading = !current.HasData()
	current.Err = nil

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.seq++
	seq := o.seq
	o.mu.Unlock()
	o.set(seq, current)

	go func() {
		res := fetchResult[T](o.ctx, o.c, o.q.Key, rawFn(o.q.Fn))
		if res.Err != nil {
			prev := o.Result()
			prev.IsLoading = false
			prev.IsFetching = false
			prev.Err = res.Err
			res = prev
		}
		o.set(seq, res)
	}()
}

// set publishes res unless the observer was closed or a newer update superseded seq.
func (o *Observer[T]) set(seq uint64, res Result[T]) {
	o.mu.Lock()
	if o.closed || seq != o.seq {
		o.mu.Unlock()
		return
	}
	o.result = res
	o.mu.Unlock()

	if o.onChange != nil {
		o.onChange(res)
	}
}
