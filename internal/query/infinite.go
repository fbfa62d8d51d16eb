package query

import (
	"context"
	"encoding/json"
	"time"
)

// InfiniteData holds every page loaded so far and the param each was fetched with.
type InfiniteData[P any, T any] struct {
	Pages      []T `json:"pages"`
	PageParams []P `json:"pageParams"`
}

// InfiniteQuery loads a list one page at a time. NextPageParam returns false
// once there is nothing more to load.
type InfiniteQuery[P any, T any] struct {
	Key              Key
	InitialPageParam P
	Fn               func(ctx context.Context, param P) (T, error)
	NextPageParam    func(last T, lastParam P) (P, bool)
	StaleTime        time.Duration
	Disabled         bool
}

// InfiniteResult is a Result over all loaded pages plus whether another page exists.
type InfiniteResult[P any, T any] struct {
	Result[InfiniteData[P, T]]
	HasNextPage bool
}

// GetInfinite resolves the first page, or every page already loaded when the
// cached data is stale, following the same freshness rules as Get.
func GetInfinite[P any, T any](ctx context.Context, c *Client, q InfiniteQuery[P, T]) InfiniteResult[P, T] {
	return q.result(Get(ctx, c, q.asQuery(c)))
}

// FetchNextPage appends the page after the last loaded one. It loads the
// first page when nothing is cached and is a no-op when no next page exists.
func FetchNextPage[P any, T any](ctx context.Context, c *Client, q InfiniteQuery[P, T]) InfiniteResult[P, T] {
	if q.Disabled {
		return InfiniteResult[P, T]{}
	}
	current, ok := cached[InfiniteData[P, T]](ctx, c, q.Key, q.StaleTime)
	if !ok {
		return GetInfinite(ctx, c, q)
	}
	if _, more := q.next(current.Data); !more {
		return q.result(current)
	}

	res := fetchResult[InfiniteData[P, T]](ctx, c, q.Key, func(ctx context.Context) (json.RawMessage, error) {
		// Re-read inside the flight so concurrent callers append once.
		latest, ok := cached[InfiniteData[P, T]](ctx, c, q.Key, q.StaleTime)
		data := current.Data
		if ok {
			data = latest.Data
		}
		param, more := q.next(data)
		if !more {
			return json.Marshal(data)
		}
		page, err := q.Fn(ctx, param)
		if err != nil {
			return nil, err
		}
		data.Pages = append(data.Pages, page)
		data.PageParams = append(data.PageParams, param)
		return json.Marshal(data)
	})
	if res.Err != nil {
		current.Err = res.Err
		return q.result(current)
	}
	return q.result(res)
}

// asQuery turns the infinite query into a plain one whose fetch reloads as
// many pages as are currently cached, starting from the initial param.
func (q InfiniteQuery[P, T]) asQuery(c *Client) Query[InfiniteData[P, T]] {
	return Query[InfiniteData[P, T]]{
		Key:       q.Key,
		StaleTime: q.StaleTime,
		Disabled:  q.Disabled,
		Fn: func(ctx context.Context) (InfiniteData[P, T], error) {
			want := 1
			if current, ok := cached[InfiniteData[P, T]](ctx, c, q.Key, q.StaleTime); ok && len(current.Data.Pages) > 0 {
				want = len(current.Data.Pages)
			}

			var data InfiniteData[P, T]
			param := q.InitialPageParam
			for i := 0; i < want; i++ {
				page, err := q.Fn(ctx, param)
				if err != nil {
					return InfiniteData[P, T]{}, err
				}
				data.Pages = append(data.Pages, page)
				data.PageParams = append(data.PageParams, param)

				next, more := q.NextPageParam(page, param)
				if !more {
					break
				}
				param = next
			}
			return data, nil
		},
	}
}

func (q InfiniteQuery[P, T]) next(data InfiniteData[P, T]) (P, bool) {
	var zero P
	n := len(data.Pages)
	if n == 0 || len(data.PageParams) != n {
		return zero, false
	}
	return q.NextPageParam(data.Pages[n-1], data.PageParams[n-1])
}

func (q InfiniteQuery[P, T]) result(res Result[InfiniteData[P, T]]) InfiniteResult[P, T] {
	_, more := q.next(res.Data)
	return InfiniteResult[P, T]{Result: res, HasNextPage: more}
}
