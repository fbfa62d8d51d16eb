package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/catalog"
	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/query"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// setupBackend builds the product API on a fresh in-memory SQLite database.
func setupBackend(t *testing.T) *fiber.App {
	t.Helper()
	log := quietLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := repositories.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, log)
	require.NoError(t, err)

	productRepo := repositories.NewGORMProductRepository(db)
	productService := services.NewProductService(productRepo, nil, log)
	productHandler := handlers.NewProductHandler(productService, log)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	productHandler.RegisterRoutes(app.Group("/api"))
	return app
}

// setupStorefront serves the backend on a local port and points a storefront at it.
func setupStorefront(t *testing.T) (*fiber.App, *fiber.App) {
	t.Helper()
	backend := setupBackend(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = backend.Listener(ln) }()
	t.Cleanup(func() { _ = backend.Shutdown() })

	return newStorefront(t, "http://"+ln.Addr().String()+"/api"), backend
}

// newStorefront builds the storefront views against the backend at baseURL.
func newStorefront(t *testing.T, baseURL string) *fiber.App {
	t.Helper()
	log := quietLogger()
	client := api.NewClient(baseURL, 5*time.Second, log)
	store, err := query.NewMemoryStore(100, time.Minute)
	require.NoError(t, err)
	qc := query.NewClient(store, query.Options{Retry: 1, RetryDelay: 10 * time.Millisecond, Logger: log})
	queries := catalog.NewQueries(client, qc, catalog.DefaultFreshness())

	storefront := fiber.New(fiber.Config{DisableStartupMessage: true})
	handlers.NewCatalogHandler(queries, config.CatalogConfig{
		LowStockThreshold: models.DefaultLowStockThreshold,
		PlaceholderImage:  "/static/placeholder.png",
	}, log).RegisterRoutes(storefront)
	return storefront
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func doJSON[T any](t *testing.T, app *fiber.App, method, path string, body any) (int, envelope[T]) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func productBody(name, barcode string, quantity int) map[string]any {
	return map[string]any{
		"nombre":        name,
		"precioPublico": 18.5,
		"precioCompra":  13,
		"descripcion":   "Refresco",
		"codigoBarra":   barcode,
		"cantidad":      quantity,
	}
}

func TestProductAPI_CRUD(t *testing.T) {
	app := setupBackend(t)

	status, created := doJSON[models.Product](t, app, http.MethodPost, "/api/productos", productBody("Coca Cola 600ml", "7501055300075", 24))
	require.Equal(t, fiber.StatusCreated, status)
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Data.ID)

	status, byBarcode := doJSON[models.Product](t, app, http.MethodGet, "/api/productos/7501055300075", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, created.Data.ID, byBarcode.Data.ID)

	status, byName := doJSON[models.Product](t, app, http.MethodGet, "/api/productos/Coca%20Cola%20600ml", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, created.Data.ID, byName.Data.ID)

	status, updated := doJSON[models.Product](t, app, http.MethodPatch, "/api/productos/"+created.Data.ID, map[string]any{"cantidad": 0})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, updated.Data.Quantity)
	assert.Equal(t, "Coca Cola 600ml", updated.Data.Name)

	status, found := doJSON[[]models.Product](t, app, http.MethodGet, "/api/productos/search?q=coca", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, found.Data, 1)

	status, _ = doJSON[models.Product](t, app, http.MethodDelete, "/api/productos/"+created.Data.ID, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, missing := doJSON[any](t, app, http.MethodGet, "/api/productos/"+created.Data.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, missing.Success)
	assert.Equal(t, "Producto no encontrado", missing.Message)
}

func TestProductAPI_Pagination(t *testing.T) {
	app := setupBackend(t)
	for i := 0; i < 25; i++ {
		status, _ := doJSON[models.Product](t, app, http.MethodPost, "/api/productos", productBody(fmt.Sprintf("Producto %02d", i), fmt.Sprintf("75%011d", i), i+1))
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, page := doJSON[models.Page](t, app, http.MethodGet, "/api/productos?page=2&limit=12&sortBy=cantidad&sortOrder=asc", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, page.Data.Data, 12)
	assert.Equal(t, 13, page.Data.Data[0].Quantity)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 12, Total: 25, TotalPages: 3, HasNextPage: true, HasPrevPage: true}, page.Data.Pagination)

	status, all := doJSON[[]models.Product](t, app, http.MethodGet, "/api/productos?limit=1000", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, all.Data, 25)

	status, _ = doJSON[any](t, app, http.MethodGet, "/api/productos?page=1&sortBy=precio", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestProductAPI_Validation(t *testing.T) {
	app := setupBackend(t)

	status, res := doJSON[map[string]string](t, app, http.MethodPost, "/api/productos", productBody("Sin stock", "123", 0))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, res.Data, "cantidad")

	status, _ = doJSON[any](t, app, http.MethodPatch, "/api/productos/anything", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON[any](t, app, http.MethodGet, "/api/productos/search?q=", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStorefront_ListStatsAndMutations(t *testing.T) {
	storefront, _ := setupStorefront(t)

	status, created := doJSON[handlers.ProductView](t, storefront, http.MethodPost, "/catalog/items", productBody("Coca Cola 600ml", "7501055300075", 24))
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "42.3", created.Data.Margin)
	assert.Equal(t, models.InStock, created.Data.StockStatus)
	assert.False(t, created.Data.HasImage)
	assert.Equal(t, "/static/placeholder.png", created.Data.DisplayURL)

	status, list := doJSON[handlers.ListView](t, storefront, http.MethodGet, "/catalog/products?sort=precio", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, list.Data.Count)
	require.NotNil(t, list.Data.Stats)
	assert.Equal(t, 1, list.Data.Stats.Total)

	status, updated := doJSON[handlers.ProductView](t, storefront, http.MethodPatch, "/catalog/items/"+created.Data.ID, map[string]any{"cantidad": 3})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.LowStock, updated.Data.StockStatus)

	// the update invalidated the list; a refresh reads through to the backend
	status, refreshed := doJSON[handlers.ListView](t, storefront, http.MethodGet, "/catalog/products?refresh=1", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, refreshed.Data.Items, 1)
	assert.Equal(t, 3, refreshed.Data.Items[0].Quantity)
	assert.Equal(t, 1, refreshed.Data.Stats.LowStock)

	status, removed := doJSON[handlers.ProductView](t, storefront, http.MethodDelete, "/catalog/items/"+created.Data.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, created.Data.ID, removed.Data.ID)
	assert.Equal(t, created.Data.Name, removed.Data.Name)
	assert.Equal(t, 3, removed.Data.Quantity)
	assert.Equal(t, models.LowStock, removed.Data.StockStatus)

	status, _ = doJSON[any](t, storefront, http.MethodGet, "/catalog/items/"+created.Data.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestStorefront_ValidationNeverReachesBackend(t *testing.T) {
	storefront, _ := setupStorefront(t)

	status, res := doJSON[map[string]string](t, storefront, http.MethodPost, "/catalog/items", map[string]any{"nombre": "Incompleto"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, res.Data, "precioPublico")
	assert.Contains(t, res.Data, "codigoBarra")
}

func TestStorefront_SearchStates(t *testing.T) {
	storefront, _ := setupStorefront(t)

	status, idle := doJSON[handlers.ListView](t, storefront, http.MethodGet, "/catalog/search?q=", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Ingresa un término de búsqueda", idle.Message)
	assert.Empty(t, idle.Data.Items)

	status, none := doJSON[handlers.ListView](t, storefront, http.MethodGet, "/catalog/search?q=leche", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "No se encontraron productos", none.Message)
}

func TestStorefront_PageAndFeed(t *testing.T) {
	storefront, backend := setupStorefront(t)
	for i := 0; i < 15; i++ {
		status, _ := doJSON[models.Product](t, backend, http.MethodPost, "/api/productos", productBody(fmt.Sprintf("Producto %02d", i), fmt.Sprintf("75%011d", i), i+1))
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, page := doJSON[handlers.PageView](t, storefront, http.MethodGet, "/catalog/page?page=2&limit=10", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, page.Data.Items, 5)
	assert.False(t, page.Data.Pagination.HasNextPage)
	assert.True(t, page.Data.Pagination.HasPrevPage)

	status, feed := doJSON[handlers.FeedView](t, storefront, http.MethodGet, "/catalog/feed?limit=10", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, feed.Data.Items, 10)
	assert.True(t, feed.Data.HasNextPage)

	status, feed = doJSON[handlers.FeedView](t, storefront, http.MethodPost, "/catalog/feed/next?limit=10", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, feed.Data.Items, 15)
	assert.Equal(t, 2, feed.Data.PagesLoaded)
	assert.False(t, feed.Data.HasNextPage)
	assert.Equal(t, int64(15), feed.Data.Total)
}

func TestStorefront_BackendDownIsBadGateway(t *testing.T) {
	storefront := newStorefront(t, "http://"+closedAddr(t)+"/api")

	status, res := doJSON[any](t, storefront, http.MethodGet, "/catalog/products", nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.False(t, res.Success)
	assert.Equal(t, "El servicio de productos no está disponible", res.Message)

	status, _ = doJSON[any](t, storefront, http.MethodGet, "/catalog/items/abc", nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
}
