package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetAll returns up to limit products, newest first.
func (r *MemoryProductRepository) GetAll(ctx context.Context, limit int) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := r.sortedLocked(models.SortByCreatedAt, models.SortDesc)
	if limit > 0 && len(productList) > limit {
		productList = productList[:limit]
	}
	return productList, nil
}

// List returns one page of products and the total matching count.
func (r *MemoryProductRepository) List(ctx context.Context, q models.PageQuery) ([]models.Product, int64, error) {
	q = q.Normalize()
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := q.SortOrder
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = models.SortByCreatedAt
		if order == "" {
			order = models.SortDesc
		}
	}

	matched := make([]models.Product, 0, len(r.products))
	needle := strings.ToLower(q.Search)
	for _, p := range r.sortedLocked(sortBy, order) {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) ||
			strings.Contains(p.Barcode, q.Search) {
			matched = append(matched, p)
		}
	}

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start >= len(matched) {
		return []models.Product{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// Search returns products whose name contains term, ignoring case.
func (r *MemoryProductRepository) Search(ctx context.Context, term string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(term))
	result := make([]models.Product, 0)
	for _, p := range r.sortedLocked(models.SortByName, models.SortAsc) {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			result = append(result, p)
		}
	}
	return result, nil
}

// FindByIdentifier returns a product by ID, barcode or exact name.
func (r *MemoryProductRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if product, ok := r.products[identifier]; ok {
		return &product, nil
	}
	for _, match := range []func(models.Product) bool{
		func(p models.Product) bool { return p.Barcode == identifier },
		func(p models.Product) bool { return p.Name == identifier },
	} {
		for _, p := range r.sortedLocked(models.SortByCreatedAt, models.SortAsc) {
			if match(p) {
				return &p, nil
			}
		}
	}
	return nil, fmt.Errorf("product %s: %w", identifier, ErrProductNotFound)
}

// Create adds a new product.
func (r *MemoryProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MemoryProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrProductNotFound)
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MemoryProductRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrProductNotFound)
	}
	delete(r.products, id)
	return nil
}

// sortedLocked returns a sorted copy of all products. Callers hold r.mu.
func (r *MemoryProductRepository) sortedLocked(field models.SortField, order models.SortOrder) []models.Product {
	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}

	less := func(a, b models.Product) bool {
		switch field {
		case models.SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case models.SortByPrice:
			return a.PublicPrice.LessThan(b.PublicPrice)
		case models.SortByQuantity:
			return a.Quantity < b.Quantity
		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(productList, func(i, j int) bool {
		if order == models.SortDesc {
			return less(productList[j], productList[i])
		}
		return less(productList[i], productList[j])
	})
	return productList
}
