package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 1000
)

// SortField enumerates the columns a paged listing may be ordered by.
type SortField string

const (
	SortByName      SortField = "nombre"
	SortByPrice     SortField = "precioPublico"
	SortByQuantity  SortField = "cantidad"
	SortByCreatedAt SortField = "createdAt"
)

// Valid reports whether f is one of the known sort fields. The empty field is
// valid and means "backend default".
func (f SortField) Valid() bool {
	switch f {
	case "", SortByName, SortByPrice, SortByQuantity, SortByCreatedAt:
		return true
	}
	return false
}

// SortOrder is the direction of a paged listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == "" || o == SortAsc || o == SortDesc
}

// PageQuery describes one page of the product listing.
type PageQuery struct {
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	Search    string    `json:"search,omitempty"`
	SortBy    SortField `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
}

// Normalize fills in the default page and limit and trims the search term.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Validate rejects values that cannot be sent to the backend.
func (q PageQuery) Validate() error {
	if q.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", q.Page)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxLimit, q.Limit)
	}
	if !q.SortBy.Valid() {
		return fmt.Errorf("invalid sort field: %s", q.SortBy)
	}
	if !q.SortOrder.Valid() {
		return fmt.Errorf("invalid sort order: %s", q.SortOrder)
	}
	return nil
}

// Values encodes q as query parameters in the backend's format.
func (q PageQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortBy != "" {
		v.Set("sortBy", string(q.SortBy))
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", string(q.SortOrder))
	}
	return v
}

// String is a stable representation used in cache keys.
func (q PageQuery) String() string {
	return q.Values().Encode()
}

// ParsePageQuery reads a PageQuery from query parameters, applying defaults
// and validating the result.
func ParsePageQuery(values url.Values) (PageQuery, error) {
	q := PageQuery{
		Search:    values.Get("search"),
		SortBy:    SortField(values.Get("sortBy")),
		SortOrder: SortOrder(strings.ToLower(values.Get("sortOrder"))),
	}
	if s := values.Get("page"); s != "" {
		p, err := strconv.Atoi(s)
		if err != nil {
			return PageQuery{}, fmt.Errorf("invalid page %q: %w", s, err)
		}
		q.Page = p
	}
	if s := values.Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil {
			return PageQuery{}, fmt.Errorf("invalid limit %q: %w", s, err)
		}
		q.Limit = l
	}
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return PageQuery{}, err
	}
	return q, nil
}

// Pagination is the page metadata returned with a paged listing.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination computes page metadata for total items split into pages of limit.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(total) / limit
		if int(total)%limit > 0 {
			totalPages++
		}
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// Page is one page of products.
type Page struct {
	Data       []Product  `json:"data"`
	Pagination Pagination `json:"pagination"`
}
