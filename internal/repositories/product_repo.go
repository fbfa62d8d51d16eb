package repositories

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// ErrProductNotFound is returned when no product matches an identifier.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// GetAll returns up to limit products ordered by creation time, newest first.
	GetAll(ctx context.Context, limit int) ([]models.Product, error)
	List(ctx context.Context, q models.PageQuery) ([]models.Product, int64, error)
	// Search matches name substrings case-insensitively.
	Search(ctx context.Context, term string) ([]models.Product, error)
	// FindByIdentifier resolves an id, then a barcode, then an exact name.
	FindByIdentifier(ctx context.Context, identifier string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
