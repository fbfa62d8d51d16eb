package services

import (
	"context"
	"encoding/json"
	"errors"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/validator"

	"github.com/sirupsen/logrus"
)

// Product event names published after each successful write.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// ErrEmptyPatch is returned when an update carries no fields.
var ErrEmptyPatch = errors.New("update contains no fields")

// EventPublisher sends product events to a message broker.
type EventPublisher interface {
	Publish(eventType string, body []byte) error
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	validator *validator.CustomValidator
	events    EventPublisher // nil disables publishing
	log       *logrus.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, events EventPublisher, log *logrus.Logger) *ProductService {
	return &ProductService{
		repo:      repo,
		validator: validator.NewValidator(),
		events:    events,
		log:       log,
	}
}

// GetAllProducts retrieves up to limit products.
func (s *ProductService) GetAllProducts(ctx context.Context, limit int) ([]models.Product, error) {
	return s.repo.GetAll(ctx, limit)
}

// ListProducts retrieves one page of products with its pagination metadata.
func (s *ProductService) ListProducts(ctx context.Context, q models.PageQuery) (*models.Page, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	products, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &models.Page{
		Data:       products,
		Pagination: models.NewPagination(q.Page, q.Limit, total),
	}, nil
}

// SearchProducts retrieves products whose name contains term.
func (s *ProductService) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	return s.repo.Search(ctx, term)
}

// GetProduct retrieves a single product by ID, barcode or name.
func (s *ProductService) GetProduct(ctx context.Context, identifier string) (*models.Product, error) {
	return s.repo.FindByIdentifier(ctx, identifier)
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := s.validator.ValidateInput(in); err != nil {
		return nil, err
	}
	product := models.NewProduct(in)
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, err
	}
	s.publish(EventProductCreated, product)
	return &product, nil
}

// UpdateProduct applies a partial update to the product found by identifier.
func (s *ProductService) UpdateProduct(ctx context.Context, identifier string, patch models.ProductPatch) (*models.Product, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	if err := s.validator.ValidatePatch(patch); err != nil {
		return nil, err
	}
	product, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	product.Apply(patch)
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.publish(EventProductUpdated, *product)
	return product, nil
}

// DeleteProduct removes the product found by identifier and returns it.
func (s *ProductService) DeleteProduct(ctx context.Context, identifier string) (*models.Product, error) {
	product, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, product.ID); err != nil {
		return nil, err
	}
	s.publish(EventProductDeleted, *product)
	return product, nil
}

// publish is best effort: a broker failure never fails the write it follows.
func (s *ProductService) publish(eventType string, product models.Product) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(product)
	if err != nil {
		s.log.WithError(err).Error("Failed to marshal product event")
		return
	}
	if err := s.events.Publish(eventType, body); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":   eventType,
			"product": product.ID,
		}).WithError(err).Warn("Failed to publish product event")
	}
}
