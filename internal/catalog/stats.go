package catalog

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const highlightCount = 3

// Stats summarizes the catalog for the dashboard.
type Stats struct {
	Total          int             `json:"total"`
	LowStock       int             `json:"lowStock"`
	OutOfStock     int             `json:"outOfStock"`
	InventoryValue decimal.Decimal `json:"inventoryValue"`
	AverageMargin  decimal.Decimal `json:"averageMargin"`
	WithoutImage   int             `json:"withoutImage"`

	LowStockHighlights     []models.Product `json:"lowStockHighlights"`
	WithoutImageHighlights []models.Product `json:"withoutImageHighlights"`
}

// ComputeStats aggregates products. LowStock counts every product at or below
// the threshold, out-of-stock ones included; OutOfStock counts only the empty
// ones. Products with a zero purchase price contribute a zero margin.
func ComputeStats(products []models.Product, lowStockThreshold int) Stats {
	s := Stats{
		Total:                  len(products),
		InventoryValue:         decimal.Zero,
		AverageMargin:          decimal.Zero,
		LowStockHighlights:     []models.Product{},
		WithoutImageHighlights: []models.Product{},
	}

	marginSum := decimal.Zero
	for _, p := range products {
		if p.StockStatus(lowStockThreshold) == models.OutOfStock {
			s.OutOfStock++
		}
		if p.Quantity <= lowStockThreshold {
			s.LowStock++
			if len(s.LowStockHighlights) < highlightCount {
				s.LowStockHighlights = append(s.LowStockHighlights, p)
			}
		}
		if !p.HasImage() {
			s.WithoutImage++
			if len(s.WithoutImageHighlights) < highlightCount {
				s.WithoutImageHighlights = append(s.WithoutImageHighlights, p)
			}
		}
		s.InventoryValue = s.InventoryValue.Add(p.PublicPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
		marginSum = marginSum.Add(p.Margin())
	}

	if len(products) > 0 {
		s.AverageMargin = marginSum.Div(decimal.NewFromInt(int64(len(products))))
	}
	return s
}
