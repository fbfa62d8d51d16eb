package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/query"
	"storefront/pkg/validator"
)

// ProductView is a product as the storefront shows it.
type ProductView struct {
	models.Product
	Margin      string             `json:"margin"`
	StockStatus models.StockStatus `json:"stockStatus"`
	HasImage    bool               `json:"hasImage"`
	DisplayURL  string             `json:"imageUrl"`
}

// ListView is a list of products plus the state of the query behind it.
type ListView struct {
	Items      []ProductView  `json:"items"`
	Count      int            `json:"count"`
	Stats      *catalog.Stats `json:"stats,omitempty"`
	IsStale    bool           `json:"isStale"`
	IsFetching bool           `json:"isFetching"`
	UpdatedAt  *time.Time     `json:"updatedAt,omitempty"`
}

// PageView is one page of the paged listing.
type PageView struct {
	Items      []ProductView     `json:"items"`
	Pagination models.Pagination `json:"pagination"`
	IsStale    bool              `json:"isStale"`
}

// FeedView is every page of the incremental feed loaded so far.
type FeedView struct {
	Items       []ProductView `json:"items"`
	PagesLoaded int           `json:"pagesLoaded"`
	HasNextPage bool          `json:"hasNextPage"`
	Total       int64         `json:"total"`
}

// CatalogHandler renders the storefront views from cached product queries.
type CatalogHandler struct {
	queries *catalog.Queries
	cfg     config.CatalogConfig
	log     *logrus.Logger
}

func NewCatalogHandler(queries *catalog.Queries, cfg config.CatalogConfig, log *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{queries: queries, cfg: cfg, log: log}
}

func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	r := router.Group("/catalog")
	r.Get("/products", h.HandleList)
	r.Get("/stats", h.HandleStats)
	r.Get("/search", h.HandleSearch)
	r.Get("/page", h.HandlePage)
	r.Get("/feed", h.HandleFeed)
	r.Post("/feed/next", h.HandleFeedNext)
	r.Get("/items/:identifier", h.HandleDetail)
	r.Post("/items", h.HandleCreate)
	r.Patch("/items/:identifier", h.HandleUpdate)
	r.Delete("/items/:identifier", h.HandleDelete)
}

// HandleList shows the whole catalog filtered by ?q and sorted by ?sort
// (nombre, precio or stock). ?refresh=1 bypasses the cache.
func (h *CatalogHandler) HandleList(c *fiber.Ctx) error {
	sortKey, err := catalog.ParseSortKey(c.Query("sort"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Orden inválido", err)
	}

	res := h.products(c)
	if res.Err != nil {
		return h.writeError(c, res.Err)
	}

	filtered := catalog.FilterAndSort(res.Data, c.Query("q"), sortKey)
	stats := catalog.ComputeStats(res.Data, h.cfg.LowStockThreshold)
	view := h.listView(filtered, res.IsStale, res.IsFetching, res.UpdatedAt)
	view.Stats = &stats
	if len(filtered) == 0 {
		return ok(c, fiber.StatusOK, "No se encontraron productos", view)
	}
	return ok(c, fiber.StatusOK, "Productos obtenidos", view)
}

// HandleStats shows the dashboard figures.
func (h *CatalogHandler) HandleStats(c *fiber.Ctx) error {
	res := h.products(c)
	if res.Err != nil {
		return h.writeError(c, res.Err)
	}
	return ok(c, fiber.StatusOK, "Estadísticas calculadas", catalog.ComputeStats(res.Data, h.cfg.LowStockThreshold))
}

// HandleSearch searches the backend by name. A blank term is not an error:
// it yields an idle, empty result.
func (h *CatalogHandler) HandleSearch(c *fiber.Ctx) error {
	term := c.Query("q")
	res := h.queries.Search(c.UserContext(), term)
	if res.Err != nil {
		return h.writeError(c, res.Err)
	}
	view := h.listView(res.Data, res.IsStale, res.IsFetching, res.UpdatedAt)
	switch {
	case !res.HasData():
		return ok(c, fiber.StatusOK, "Ingresa un término de búsqueda", view)
	case len(res.Data) == 0:
		return ok(c, fiber.StatusOK, "No se encontraron productos", view)
	}
	return ok(c, fiber.StatusOK, "Búsqueda completada", view)
}

// HandlePage shows one page of the backend-paged listing.
func (h *CatalogHandler) HandlePage(c *fiber.Ctx) error {
	q, err := models.ParsePageQuery(queryValues(c))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Parámetros de paginación inválidos", err)
	}
	res := h.queries.Paged(c.UserContext(), q)
	if res.Err != nil {
		return h.writeError(c, res.Err)
	}
	return ok(c, fiber.StatusOK, "Página obtenida", PageView{
		Items:      h.views(res.Data.Data),
		Pagination: res.Data.Pagination,
		IsStale:    res.IsStale,
	})
}

// HandleFeed shows the incremental feed as loaded so far.
func (h *CatalogHandler) HandleFeed(c *fiber.Ctx) error {
	limit, err := h.feedLimit(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Límite inválido", err)
	}
	return h.writeFeed(c, h.queries.Feed(c.UserContext(), limit, c.Query("search")))
}

// HandleFeedNext loads one more page into the feed.
func (h *CatalogHandler) HandleFeedNext(c *fiber.Ctx) error {
	limit, err := h.feedLimit(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Límite inválido", err)
	}
	return h.writeFeed(c, h.queries.FeedNext(c.UserContext(), limit, c.Query("search")))
}

// HandleDetail shows one product.
func (h *CatalogHandler) HandleDetail(c *fiber.Ctx) error {
	res := h.queries.Product(c.UserContext(), identifierParam(c))
	if res.Err != nil {
		return h.writeError(c, res.Err)
	}
	return ok(c, fiber.StatusOK, "Producto obtenido", h.view(res.Data))
}

func (h *CatalogHandler) HandleCreate(c *fiber.Ctx) error {
	var in models.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "Cuerpo de la solicitud inválido", err)
	}
	created, err := h.queries.Create.Mutate(c.UserContext(), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return ok(c, fiber.StatusCreated, "Producto creado exitosamente", h.view(*created))
}

func (h *CatalogHandler) HandleUpdate(c *fiber.Ctx) error {
	var patch models.ProductPatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "Cuerpo de la solicitud inválido", err)
	}
	updated, err := h.queries.Update.Mutate(c.UserContext(), catalog.UpdateRequest{
		Identifier: identifierParam(c),
		Patch:      patch,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return ok(c, fiber.StatusOK, "Producto actualizado exitosamente", h.view(*updated))
}

func (h *CatalogHandler) HandleDelete(c *fiber.Ctx) error {
	removed, err := h.queries.Delete.Mutate(c.UserContext(), identifierParam(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return ok(c, fiber.StatusOK, "Producto eliminado exitosamente", h.view(*removed))
}

func (h *CatalogHandler) products(c *fiber.Ctx) query.Result[[]models.Product] {
	if c.QueryBool("refresh") {
		return h.queries.RefreshProducts(c.UserContext())
	}
	return h.queries.Products(c.UserContext())
}

func (h *CatalogHandler) feedLimit(c *fiber.Ctx) (int, error) {
	s := c.Query("limit")
	if s == "" {
		return models.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if limit < 1 || limit > models.MaxLimit {
		return 0, errors.New("limit out of range")
	}
	return limit, nil
}

func (h *CatalogHandler) writeFeed(c *fiber.Ctx, res catalog.FeedPage) error {
	if res.Err != nil && !res.HasData() {
		return h.writeError(c, res.Err)
	}
	view := FeedView{Items: []ProductView{}, PagesLoaded: len(res.Data.Pages), HasNextPage: res.HasNextPage}
	for _, page := range res.Data.Pages {
		view.Items = append(view.Items, h.views(page.Data)...)
		view.Total = page.Pagination.Total
	}
	if res.Err != nil {
		h.log.WithError(res.Err).Warn("Loading next feed page failed")
		return ok(c, fiber.StatusOK, "No se pudo cargar más productos", view)
	}
	return ok(c, fiber.StatusOK, "Productos obtenidos", view)
}

func (h *CatalogHandler) listView(products []models.Product, stale, fetching bool, updatedAt time.Time) ListView {
	view := ListView{
		Items:      h.views(products),
		Count:      len(products),
		IsStale:    stale,
		IsFetching: fetching,
	}
	if !updatedAt.IsZero() {
		view.UpdatedAt = &updatedAt
	}
	return view
}

func (h *CatalogHandler) views(products []models.Product) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, h.view(p))
	}
	return out
}

func (h *CatalogHandler) view(p models.Product) ProductView {
	v := ProductView{
		Product:     p,
		Margin:      p.Margin().StringFixed(1),
		StockStatus: p.StockStatus(h.cfg.LowStockThreshold),
		HasImage:    p.HasImage(),
		DisplayURL:  p.ImageURL,
	}
	if !v.HasImage {
		v.DisplayURL = h.cfg.PlaceholderImage
	}
	return v
}

// writeError maps client and backend failures onto storefront responses.
func (h *CatalogHandler) writeError(c *fiber.Ctx, err error) error {
	var verr *validator.ValidationError
	var rf *api.RequestFailed
	switch {
	case errors.As(err, &verr):
		return fail(c, fiber.StatusBadRequest, "Datos del producto inválidos", err)
	case errors.Is(err, api.ErrEmptySearch):
		return fail(c, fiber.StatusBadRequest, "El término de búsqueda es requerido", err)
	case api.IsNotFound(err):
		return fail(c, fiber.StatusNotFound, "Producto no encontrado", err)
	case errors.As(err, &rf):
		msg := rf.Message
		if msg == "" {
			msg = "El servicio de productos no está disponible"
		}
		return fail(c, fiber.StatusBadGateway, msg, err)
	}
	h.log.WithError(err).WithField("path", c.Path()).Error("Storefront request failed")
	return fail(c, fiber.StatusInternalServerError, "Error inesperado", err)
}
