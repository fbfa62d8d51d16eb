package catalog

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"storefront/internal/models"
)

// SortKey orders the client-side listing, always ascending.
type SortKey string

const (
	SortByName  SortKey = "nombre"
	SortByPrice SortKey = "precio"
	SortByStock SortKey = "stock"
)

// ParseSortKey accepts the three sort keys; empty means by name.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "", SortByName:
		return SortByName, nil
	case SortByPrice, SortByStock:
		return SortKey(s), nil
	}
	return "", fmt.Errorf("invalid sort key %q: must be nombre, precio or stock", s)
}

// FilterAndSort keeps the products whose name or description contains term
// (ignoring case) or whose barcode contains it verbatim, then sorts a copy.
// The input slice is not modified.
func FilterAndSort(products []models.Product, term string, key SortKey) []models.Product {
	needle := strings.ToLower(term)
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(p.Barcode, term) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}

	switch key {
	case SortByPrice:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PublicPrice.LessThan(out[j].PublicPrice) })
	case SortByStock:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	default:
		// Collators are not safe for concurrent use.
		col := collate.New(language.Spanish, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool { return col.CompareString(out[i].Name, out[j].Name) < 0 })
	}
	return out
}
