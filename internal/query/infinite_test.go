package query_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/query"
)

type numberPage struct {
	Items   []int `json:"items"`
	Page    int   `json:"page"`
	HasNext bool  `json:"hasNext"`
}

func numberFeed(calls *int32) query.InfiniteQuery[int, numberPage] {
	return query.InfiniteQuery[int, numberPage]{
		Key:              query.Key{"productos", "infinite"},
		InitialPageParam: 1,
		StaleTime:        time.Hour,
		Fn: func(_ context.Context, page int) (numberPage, error) {
			atomic.AddInt32(calls, 1)
			return numberPage{Items: []int{page * 10, page*10 + 1}, Page: page, HasNext: page < 3}, nil
		},
		NextPageParam: func(last numberPage, lastParam int) (int, bool) {
			return lastParam + 1, last.HasNext
		},
	}
}

func TestInfinite_AppendsUntilLastPage(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	var calls int32
	q := numberFeed(&calls)

	res := query.GetInfinite(ctx, c, q)
	require.NoError(t, res.Err)
	assert.Len(t, res.Data.Pages, 1)
	assert.True(t, res.HasNextPage)

	res = query.FetchNextPage(ctx, c, q)
	assert.Len(t, res.Data.Pages, 2)
	assert.Equal(t, []int{1, 2}, res.Data.PageParams)

	res = query.FetchNextPage(ctx, c, q)
	assert.Len(t, res.Data.Pages, 3)
	assert.False(t, res.HasNextPage)

	res = query.FetchNextPage(ctx, c, q)
	assert.Len(t, res.Data.Pages, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInfinite_FetchNextWithoutCacheLoadsFirstPage(t *testing.T) {
	c := newClient(t)
	var calls int32

	res := query.FetchNextPage(context.Background(), c, numberFeed(&calls))
	assert.Len(t, res.Data.Pages, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInfinite_InvalidationReloadsLoadedPages(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	var calls int32
	q := numberFeed(&calls)

	query.GetInfinite(ctx, c, q)
	query.FetchNextPage(ctx, c, q)
	_, err := c.Invalidate(ctx, productos)
	require.NoError(t, err)

	stale := query.GetInfinite(ctx, c, q)
	assert.True(t, stale.IsStale)
	assert.Len(t, stale.Data.Pages, 2)

	// the background refetch reloads both pages
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 4 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !query.GetInfinite(ctx, c, q).IsStale }, time.Second, 5*time.Millisecond)
	assert.Len(t, query.GetInfinite(ctx, c, q).Data.Pages, 2)
}

func TestInfinite_KeysIndependentlyFromPaged(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	var feedCalls, pageCalls int32

	query.GetInfinite(ctx, c, numberFeed(&feedCalls))
	query.Get(ctx, c, query.Query[int32]{Key: query.Key{"productos", "paginated", "page=1"}, Fn: counter(&pageCalls), StaleTime: time.Hour})

	assert.Equal(t, int32(1), atomic.LoadInt32(&feedCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&pageCalls))
}
