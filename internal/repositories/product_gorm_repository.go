package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sortColumns whitelists sortable columns so user input never reaches ORDER BY.
var sortColumns = map[models.SortField]string{
	models.SortByName:      "name",
	models.SortByPrice:     "public_price",
	models.SortByQuantity:  "quantity",
	models.SortByCreatedAt: "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern builds a LIKE pattern matching term literally anywhere.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves up to limit products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	tx := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// List retrieves one page of products plus the total count matching the search.
func (r *GORMProductRepository) List(ctx context.Context, q models.PageQuery) ([]models.Product, int64, error) {
	q = q.Normalize()
	base := r.db.WithContext(ctx).Model(&models.Product{})
	if q.Search != "" {
		like := containsPattern(strings.ToLower(q.Search))
		base = base.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR barcode LIKE ? ESCAPE '\'`,
			like, like, containsPattern(q.Search))
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}
	order := "ASC"
	if q.SortOrder == models.SortDesc || (q.SortBy == "" && q.SortOrder == "") {
		order = "DESC"
	}

	var products []models.Product
	err := base.Order(col + " " + order).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// Search retrieves products whose name contains term, ignoring case.
func (r *GORMProductRepository) Search(ctx context.Context, term string) ([]models.Product, error) {
	var products []models.Product
	like := containsPattern(strings.ToLower(strings.TrimSpace(term)))
	if err := r.db.WithContext(ctx).Where(`LOWER(name) LIKE ? ESCAPE '\'`, like).Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// FindByIdentifier retrieves a product by ID, barcode or exact name, in that order.
func (r *GORMProductRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Product, error) {
	for _, column := range []string{"id", "barcode", "name"} {
		var product models.Product
		err := r.db.WithContext(ctx).Where(column+" = ?", identifier).First(&product).Error
		if err == nil {
			return &product, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to get product by %s %s: %w", column, identifier, err)
		}
	}
	return nil, fmt.Errorf("product %s: %w", identifier, ErrProductNotFound)
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update updates an existing product in the database.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	// Select("*") writes zero values too, so a quantity of 0 is persisted.
	res := r.db.WithContext(ctx).Model(product).Select("*").Omit("CreatedAt").Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrProductNotFound)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrProductNotFound)
	}
	return nil
}
