package catalog

import (
	"context"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/query"
)

// ProductAPI is the subset of the backend client the catalog needs.
type ProductAPI interface {
	List(ctx context.Context) ([]models.Product, error)
	ListPaged(ctx context.Context, q models.PageQuery) (*models.Page, error)
	Get(ctx context.Context, identifier string) (*models.Product, error)
	Search(ctx context.Context, term string) ([]models.Product, error)
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, identifier string, patch models.ProductPatch) (*models.Product, error)
	Remove(ctx context.Context, identifier string) (*models.Product, error)
}

// Freshness holds how long each kind of product data stays fresh.
type Freshness struct {
	List    time.Duration
	Search  time.Duration
	Paged   time.Duration
	Feed    time.Duration
	Product time.Duration
}

func DefaultFreshness() Freshness {
	return Freshness{
		List:   5 * time.Minute,
		Search: 2 * time.Minute,
		Paged:  5 * time.Minute,
		Feed:   5 * time.Minute,
		// zero: a single product always revalidates in the background
		Product: 0,
	}
}

// UpdateRequest names the product to patch.
type UpdateRequest struct {
	Identifier string
	Patch      models.ProductPatch
}

// FeedPage is one page of the incremental feed.
type FeedPage = query.InfiniteResult[int, models.Page]

// Queries exposes cached product reads and the writes that keep them current.
type Queries struct {
	api   ProductAPI
	qc    *query.Client
	fresh Freshness

	Create *query.Mutation[models.ProductInput, *models.Product]
	Update *query.Mutation[UpdateRequest, *models.Product]
	Delete *query.Mutation[string, *models.Product]
}

func NewQueries(api ProductAPI, qc *query.Client, fresh Freshness) *Queries {
	q := &Queries{api: api, qc: qc, fresh: fresh}

	q.Create = query.NewMutation(qc,
		func(ctx context.Context, in models.ProductInput) (*models.Product, error) {
			return api.Create(ctx, in)
		},
		func(ctx context.Context, _ models.ProductInput, _ *models.Product) error {
			_, err := qc.Invalidate(ctx, ProductsKey())
			return err
		},
	)

	q.Update = query.NewMutation(qc,
		func(ctx context.Context, req UpdateRequest) (*models.Product, error) {
			return api.Update(ctx, req.Identifier, req.Patch)
		},
		func(ctx context.Context, req UpdateRequest, updated *models.Product) error {
			if _, err := qc.Invalidate(ctx, ProductsKey()); err != nil {
				return err
			}
			return query.SetData(ctx, qc, ProductKey(updated.ID), *updated)
		},
	)

	q.Delete = query.NewMutation(qc,
		func(ctx context.Context, identifier string) (*models.Product, error) {
			return api.Remove(ctx, identifier)
		},
		func(ctx context.Context, identifier string, removed *models.Product) error {
			// The product may have been addressed by barcode or name.
			for _, key := range []query.Key{ProductKey(identifier), ProductKey(removed.ID)} {
				if err := qc.Remove(ctx, key); err != nil {
					return err
				}
			}
			_, err := qc.Invalidate(ctx, ProductsKey())
			return err
		},
	)

	return q
}

func (q *Queries) ProductsQuery() query.Query[[]models.Product] {
	return query.Query[[]models.Product]{
		Key:       ProductsKey(),
		StaleTime: q.fresh.List,
		Fn:        q.api.List,
	}
}

// Products returns the whole catalog.
func (q *Queries) Products(ctx context.Context) query.Result[[]models.Product] {
	res := query.Get(ctx, q.qc, q.ProductsQuery())
	if res.Data == nil && res.Err == nil {
		res.Data = []models.Product{}
	}
	return res
}

// RefreshProducts refetches the catalog regardless of freshness.
func (q *Queries) RefreshProducts(ctx context.Context) query.Result[[]models.Product] {
	res := query.Fetch(ctx, q.qc, q.ProductsQuery())
	if res.Data == nil && res.Err == nil {
		res.Data = []models.Product{}
	}
	return res
}

// ProductQuery is disabled for an empty identifier.
func (q *Queries) ProductQuery(identifier string) query.Query[models.Product] {
	return query.Query[models.Product]{
		Key:       ProductKey(identifier),
		StaleTime: q.fresh.Product,
		Disabled:  identifier == "",
		Fn: func(ctx context.Context) (models.Product, error) {
			p, err := q.api.Get(ctx, identifier)
			if err != nil {
				return models.Product{}, err
			}
			return *p, nil
		},
	}
}

func (q *Queries) Product(ctx context.Context, identifier string) query.Result[models.Product] {
	return query.Get(ctx, q.qc, q.ProductQuery(identifier))
}

// SearchQuery is disabled for a blank term.
func (q *Queries) SearchQuery(term string) query.Query[[]models.Product] {
	term = strings.TrimSpace(term)
	return query.Query[[]models.Product]{
		Key:       SearchKey(term),
		StaleTime: q.fresh.Search,
		Disabled:  term == "",
		Fn: func(ctx context.Context) ([]models.Product, error) {
			return q.api.Search(ctx, term)
		},
	}
}

func (q *Queries) Search(ctx context.Context, term string) query.Result[[]models.Product] {
	res := query.Get(ctx, q.qc, q.SearchQuery(term))
	if res.Data == nil && res.Err == nil {
		res.Data = []models.Product{}
	}
	return res
}

func (q *Queries) PagedQuery(pq models.PageQuery) query.Query[models.Page] {
	pq = pq.Normalize()
	return query.Query[models.Page]{
		Key:       PagedKey(pq),
		StaleTime: q.fresh.Paged,
		Fn: func(ctx context.Context) (models.Page, error) {
			page, err := q.api.ListPaged(ctx, pq)
			if err != nil {
				return models.Page{}, err
			}
			return *page, nil
		},
	}
}

// Paged returns one page of the catalog.
func (q *Queries) Paged(ctx context.Context, pq models.PageQuery) query.Result[models.Page] {
	return query.Get(ctx, q.qc, q.PagedQuery(pq))
}

// SearchPaged is a paged listing filtered by term.
func (q *Queries) SearchPaged(ctx context.Context, term string, page, limit int) query.Result[models.Page] {
	return q.Paged(ctx, models.PageQuery{Page: page, Limit: limit, Search: term})
}

func (q *Queries) FeedQuery(limit int, search string) query.InfiniteQuery[int, models.Page] {
	base := models.PageQuery{Limit: limit, Search: search}.Normalize()
	return query.InfiniteQuery[int, models.Page]{
		Key:              FeedKey(base.Limit, base.Search),
		InitialPageParam: 1,
		StaleTime:        q.fresh.Feed,
		Fn: func(ctx context.Context, page int) (models.Page, error) {
			pq := base
			pq.Page = page
			p, err := q.api.ListPaged(ctx, pq)
			if err != nil {
				return models.Page{}, err
			}
			return *p, nil
		},
		NextPageParam: func(last models.Page, lastParam int) (int, bool) {
			return lastParam + 1, last.Pagination.HasNextPage
		},
	}
}

// Feed returns the pages of the incremental feed loaded so far.
func (q *Queries) Feed(ctx context.Context, limit int, search string) FeedPage {
	return query.GetInfinite(ctx, q.qc, q.FeedQuery(limit, search))
}

// FeedNext loads the next page of the feed, if any.
func (q *Queries) FeedNext(ctx context.Context, limit int, search string) FeedPage {
	return query.FetchNextPage(ctx, q.qc, q.FeedQuery(limit, search))
}

// WatchProducts keeps the catalog loaded and reports every change.
func (q *Queries) WatchProducts(ctx context.Context, onChange func(query.Result[[]models.Product])) *query.Observer[[]models.Product] {
	return query.Observe(ctx, q.qc, q.ProductsQuery(), onChange)
}

// Invalidate marks all product data stale.
func (q *Queries) Invalidate(ctx context.Context) error {
	_, err := q.qc.Invalidate(ctx, ProductsKey())
	return err
}
