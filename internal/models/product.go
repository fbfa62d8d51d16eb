package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend speaks plain JSON numbers for prices.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultLowStockThreshold is the inclusive quantity at or below which a
// product is flagged as low stock.
const DefaultLowStockThreshold = 5

var hundred = decimal.NewFromInt(100)

// Product represents a product in the store catalog.
type Product struct {
	ID            string          `json:"_id" gorm:"primaryKey;type:varchar(36)"`
	Name          string          `json:"nombre" gorm:"type:varchar(200);not null;index"`
	PublicPrice   decimal.Decimal `json:"precioPublico" gorm:"type:decimal(12,2);not null"`
	PurchasePrice decimal.Decimal `json:"precioCompra" gorm:"type:decimal(12,2);not null"`
	Description   string          `json:"descripcion" gorm:"type:text"`
	Barcode       string          `json:"codigoBarra" gorm:"type:varchar(64);index"`
	Quantity      int             `json:"cantidad" gorm:"not null;default:0"`
	ImageURL      string          `json:"imagen,omitempty" gorm:"type:varchar(1024)"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ProductInput carries every editable field of a new product.
type ProductInput struct {
	Name          string          `json:"nombre" validate:"required,max=200"`
	PublicPrice   decimal.Decimal `json:"precioPublico" validate:"gt=0"`
	PurchasePrice decimal.Decimal `json:"precioCompra" validate:"gt=0"`
	Description   string          `json:"descripcion" validate:"required,max=2000"`
	Barcode       string          `json:"codigoBarra" validate:"required,max=64"`
	Quantity      int             `json:"cantidad" validate:"gt=0"`
	ImageURL      string          `json:"imagen,omitempty" validate:"omitempty,url"`
}

// ProductPatch is a partial update: nil fields are left untouched.
type ProductPatch struct {
	Name          *string          `json:"nombre,omitempty"`
	PublicPrice   *decimal.Decimal `json:"precioPublico,omitempty"`
	PurchasePrice *decimal.Decimal `json:"precioCompra,omitempty"`
	Description   *string          `json:"descripcion,omitempty"`
	Barcode       *string          `json:"codigoBarra,omitempty"`
	Quantity      *int             `json:"cantidad,omitempty"`
	ImageURL      *string          `json:"imagen,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.PublicPrice == nil && p.PurchasePrice == nil &&
		p.Description == nil && p.Barcode == nil && p.Quantity == nil && p.ImageURL == nil
}

// NewProduct builds an unsaved product from input.
func NewProduct(in ProductInput) Product {
	return Product{
		Name:          in.Name,
		PublicPrice:   in.PublicPrice,
		PurchasePrice: in.PurchasePrice,
		Description:   in.Description,
		Barcode:       in.Barcode,
		Quantity:      in.Quantity,
		ImageURL:      in.ImageURL,
	}
}

// Apply copies every set field of patch onto p.
func (p *Product) Apply(patch ProductPatch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.PublicPrice != nil {
		p.PublicPrice = *patch.PublicPrice
	}
	if patch.PurchasePrice != nil {
		p.PurchasePrice = *patch.PurchasePrice
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Barcode != nil {
		p.Barcode = *patch.Barcode
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
}

// Margin returns (public - purchase) / purchase * 100. A zero purchase price
// yields zero instead of an undefined value.
func (p Product) Margin() decimal.Decimal {
	return Margin(p.PublicPrice, p.PurchasePrice)
}

// Margin is the markup of public over purchase price, in percent.
func Margin(public, purchase decimal.Decimal) decimal.Decimal {
	if purchase.IsZero() {
		return decimal.Zero
	}
	return public.Sub(purchase).Div(purchase).Mul(hundred)
}

// HasImage reports whether the product references a hosted image.
func (p Product) HasImage() bool {
	return p.ImageURL != ""
}

// StockStatus classifies a product by quantity.
type StockStatus string

const (
	OutOfStock StockStatus = "out_of_stock"
	LowStock   StockStatus = "low_stock"
	InStock    StockStatus = "in_stock"
)

// ClassifyStock maps a quantity onto a StockStatus. Quantities at or below
// threshold (but above zero) are low stock.
func ClassifyStock(quantity, threshold int) StockStatus {
	switch {
	case quantity <= 0:
		return OutOfStock
	case quantity <= threshold:
		return LowStock
	default:
		return InStock
	}
}

// StockStatus classifies p against threshold.
func (p Product) StockStatus(threshold int) StockStatus {
	return ClassifyStock(p.Quantity, threshold)
}
