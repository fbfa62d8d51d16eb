package query

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Mutation wraps a write. Writes are never retried; OnSuccess applies the
// cache effects of a successful write.
type Mutation[In any, Out any] struct {
	fn        func(ctx context.Context, in In) (Out, error)
	onSuccess func(ctx context.Context, in In, out Out) error
	log       *logrus.Logger
	pending   atomic.Int32
}

func NewMutation[In any, Out any](
	c *Client,
	fn func(ctx context.Context, in In) (Out, error),
	onSuccess func(ctx context.Context, in In, out Out) error,
) *Mutation[In, Out] {
	return &Mutation[In, Out]{fn: fn, onSuccess: onSuccess, log: c.log}
}

// Mutate runs the write once. A failure to update the cache afterwards is
// logged and does not fail the write.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) (Out, error) {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	out, err := m.fn(ctx, in)
	if err != nil {
		return out, err
	}
	if m.onSuccess != nil {
		if err := m.onSuccess(ctx, in, out); err != nil {
			m.log.WithError(err).Warn("Cache update after mutation failed")
		}
	}
	return out, nil
}

// IsPending reports whether any Mutate call is in progress.
func (m *Mutation[In, Out]) IsPending() bool {
	return m.pending.Load() > 0
}
