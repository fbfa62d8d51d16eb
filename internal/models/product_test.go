package models_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestProduct_Margin(t *testing.T) {
	p := models.Product{
		Name:          "Coca Cola 600ml",
		PublicPrice:   decimal.RequireFromString("18.50"),
		PurchasePrice: decimal.RequireFromString("13.00"),
		Barcode:       "7501055363124",
		Quantity:      24,
	}

	assert.Equal(t, "42.3", p.Margin().Round(1).String())
	assert.Equal(t, models.InStock, p.StockStatus(models.DefaultLowStockThreshold))
}

func TestMargin_ZeroPurchasePrice(t *testing.T) {
	m := models.Margin(decimal.NewFromInt(10), decimal.Zero)
	assert.True(t, m.IsZero())
}

func TestMargin_Negative(t *testing.T) {
	m := models.Margin(decimal.NewFromInt(5), decimal.NewFromInt(10))
	assert.Equal(t, "-50", m.String())
}

func TestClassifyStock(t *testing.T) {
	threshold := models.DefaultLowStockThreshold

	assert.Equal(t, models.OutOfStock, models.ClassifyStock(0, threshold))
	assert.Equal(t, models.LowStock, models.ClassifyStock(3, threshold))
	assert.Equal(t, models.LowStock, models.ClassifyStock(5, threshold))
	assert.Equal(t, models.InStock, models.ClassifyStock(6, threshold))
	assert.Equal(t, models.InStock, models.ClassifyStock(50, threshold))
}

func TestProduct_JSONWireNames(t *testing.T) {
	raw := `{"_id":"abc","nombre":"Pan","precioPublico":18.5,"precioCompra":13,` +
		`"descripcion":"d","codigoBarra":"123","cantidad":4}`

	var p models.Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, "abc", p.ID)
	assert.True(t, p.PublicPrice.Equal(decimal.RequireFromString("18.5")))
	assert.Equal(t, 4, p.Quantity)
	assert.False(t, p.HasImage())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"precioPublico":18.5`)
	assert.NotContains(t, string(out), `"imagen"`)
}

func TestProductPatch_OnlySetFieldsAreEncoded(t *testing.T) {
	zero := 0
	patch := models.ProductPatch{Quantity: &zero}

	out, err := json.Marshal(patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cantidad":0}`, string(out))
	assert.False(t, patch.IsEmpty())
	assert.True(t, models.ProductPatch{}.IsEmpty())
}

func TestProduct_Apply(t *testing.T) {
	p := models.Product{Name: "Old", Quantity: 10}
	name := "New"
	qty := 0

	p.Apply(models.ProductPatch{Name: &name, Quantity: &qty})

	assert.Equal(t, "New", p.Name)
	assert.Equal(t, 0, p.Quantity)
}
