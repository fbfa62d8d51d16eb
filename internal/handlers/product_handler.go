package handlers

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/validator"
)

// ProductHandler serves the product REST contract the storefront consumes.
type ProductHandler struct {
	service *services.ProductService
	log     *logrus.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log *logrus.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/productos")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/search", h.HandleSearchProducts)
	productRoutes.Get("/:identifier", h.HandleGetProduct)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Patch("/:identifier", h.HandleUpdateProduct)
	productRoutes.Delete("/:identifier", h.HandleDeleteProduct)
}

// HandleGetProducts lists products. With a page parameter the answer is a
// paged payload, otherwise a plain array capped by limit.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	values := queryValues(c)

	if values.Has("page") {
		q, err := models.ParsePageQuery(values)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Parámetros de paginación inválidos", err)
		}
		page, err := h.service.ListProducts(c.UserContext(), q)
		if err != nil {
			h.log.WithError(err).Error("Error listing products")
			return fail(c, fiber.StatusInternalServerError, "No se pudieron obtener los productos", err)
		}
		return ok(c, fiber.StatusOK, "Productos obtenidos", page)
	}

	limit := models.MaxLimit
	if s := values.Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l < 1 {
			return fail(c, fiber.StatusBadRequest, "Límite inválido", err)
		}
		limit = l
	}
	products, err := h.service.GetAllProducts(c.UserContext(), limit)
	if err != nil {
		h.log.WithError(err).Error("Error getting all products")
		return fail(c, fiber.StatusInternalServerError, "No se pudieron obtener los productos", err)
	}
	return ok(c, fiber.StatusOK, "Productos obtenidos", products)
}

// HandleSearchProducts finds products by name.
func (h *ProductHandler) HandleSearchProducts(c *fiber.Ctx) error {
	term := queryValues(c).Get("q")
	if term == "" {
		return fail(c, fiber.StatusBadRequest, "El término de búsqueda es requerido", nil)
	}
	products, err := h.service.SearchProducts(c.UserContext(), term)
	if err != nil {
		h.log.WithError(err).Error("Error searching products")
		return fail(c, fiber.StatusInternalServerError, "No se pudo realizar la búsqueda", err)
	}
	return ok(c, fiber.StatusOK, "Búsqueda completada", products)
}

// HandleGetProduct retrieves a single product by ID, barcode or name.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	identifier := identifierParam(c)
	product, err := h.service.GetProduct(c.UserContext(), identifier)
	if err != nil {
		return h.writeError(c, err, "No se pudo obtener el producto")
	}
	return ok(c, fiber.StatusOK, "Producto obtenido", product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var in models.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "Cuerpo de la solicitud inválido", err)
	}
	product, err := h.service.CreateProduct(c.UserContext(), in)
	if err != nil {
		return h.writeError(c, err, "No se pudo crear el producto")
	}
	return ok(c, fiber.StatusCreated, "Producto creado", product)
}

// HandleUpdateProduct applies a partial update.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var patch models.ProductPatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "Cuerpo de la solicitud inválido", err)
	}
	product, err := h.service.UpdateProduct(c.UserContext(), identifierParam(c), patch)
	if err != nil {
		return h.writeError(c, err, "No se pudo actualizar el producto")
	}
	return ok(c, fiber.StatusOK, "Producto actualizado", product)
}

// HandleDeleteProduct deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	product, err := h.service.DeleteProduct(c.UserContext(), identifierParam(c))
	if err != nil {
		return h.writeError(c, err, "No se pudo eliminar el producto")
	}
	return ok(c, fiber.StatusOK, "Producto eliminado", product)
}

func (h *ProductHandler) writeError(c *fiber.Ctx, err error, message string) error {
	var verr *validator.ValidationError
	switch {
	case errors.As(err, &verr):
		return fail(c, fiber.StatusBadRequest, "Datos del producto inválidos", err)
	case errors.Is(err, services.ErrEmptyPatch):
		return fail(c, fiber.StatusBadRequest, "No hay campos para actualizar", err)
	case errors.Is(err, repositories.ErrProductNotFound):
		return fail(c, fiber.StatusNotFound, "Producto no encontrado", err)
	}
	h.log.WithError(err).WithField("path", c.Path()).Error(message)
	return fail(c, fiber.StatusInternalServerError, message, err)
}

// queryValues exposes the request's query string as url.Values.
func queryValues(c *fiber.Ctx) url.Values {
	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return url.Values{}
	}
	return values
}
