package catalog

import (
	"strings"

	"storefront/internal/models"
	"storefront/internal/query"
)

// Namespace is the first element of every product key. Invalidating it
// refreshes everything product related.
const Namespace = "productos"

func ProductsKey() query.Key { return query.Key{Namespace} }

func ProductKey(identifier string) query.Key { return query.Key{Namespace, identifier} }

func SearchKey(term string) query.Key {
	return query.Key{Namespace, "search", strings.TrimSpace(term)}
}

func PagedKey(q models.PageQuery) query.Key {
	return query.Key{Namespace, "paginated", q.Normalize().String()}
}

func FeedKey(limit int, search string) query.Key {
	q := models.PageQuery{Limit: limit, Search: search}.Normalize()
	q.Page = 0
	return query.Key{Namespace, "infinite", q.String()}
}
