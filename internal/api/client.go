package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"storefront/internal/models"
	"storefront/pkg/validator"
)

// ListLimit is the limit sent by List to fetch the whole catalog at once.
const ListLimit = 1000

// Client talks to the product backend REST contract.
type Client struct {
	baseURL   string
	timeout   time.Duration
	http      *fiber.Client
	validator *validator.CustomValidator
	log       *logrus.Logger
}

// NewClient creates a Client for baseURL (for example http://localhost:4000/api).
// A zero timeout leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
		http:      &fiber.Client{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal},
		validator: validator.NewValidator(),
		log:       log,
	}
}

// List fetches every product.
func (c *Client) List(ctx context.Context) ([]models.Product, error) {
	query := url.Values{"limit": {strconv.Itoa(ListLimit)}}
	return do[[]models.Product](ctx, c, fiber.MethodGet, "/productos", query, nil)
}

// ListPaged fetches one page of products.
func (c *Client) ListPaged(ctx context.Context, q models.PageQuery) (*models.Page, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	page, err := do[models.Page](ctx, c, fiber.MethodGet, "/productos", q.Values(), nil)
	if err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []models.Product{}
	}
	return &page, nil
}

// Get fetches one product by ID, barcode or exact name.
func (c *Client) Get(ctx context.Context, identifier string) (*models.Product, error) {
	p, err := do[models.Product](ctx, c, fiber.MethodGet, productPath(identifier), nil, nil)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Search returns products whose name matches term.
func (c *Client) Search(ctx context.Context, term string) ([]models.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptySearch
	}
	products, err := do[[]models.Product](ctx, c, fiber.MethodGet, "/productos/search", url.Values{"q": {term}}, nil)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// Create validates in and stores it as a new product.
func (c *Client) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := c.validator.ValidateInput(in); err != nil {
		return nil, err
	}
	p, err := do[models.Product](ctx, c, fiber.MethodPost, "/productos", nil, in)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update sends the set fields of patch for the product found by identifier.
func (c *Client) Update(ctx context.Context, identifier string, patch models.ProductPatch) (*models.Product, error) {
	if err := c.validator.ValidatePatch(patch); err != nil {
		return nil, err
	}
	p, err := do[models.Product](ctx, c, fiber.MethodPatch, productPath(identifier), nil, patch)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Remove deletes the product found by identifier and returns the deleted record.
func (c *Client) Remove(ctx context.Context, identifier string) (*models.Product, error) {
	p, err := do[models.Product](ctx, c, fiber.MethodDelete, productPath(identifier), nil, nil)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func productPath(identifier string) string {
	return "/productos/" + url.PathEscape(identifier)
}

type reply struct {
	status int
	body   []byte
	err    error
}

// do sends one request and decodes the envelope's data into T. Every failure
// is logged here and returned as *RequestFailed.
func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	var agent *fiber.Agent
	switch method {
	case fiber.MethodPost:
		agent = c.http.Post(uri)
	case fiber.MethodPatch:
		agent = c.http.Patch(uri)
	case fiber.MethodDelete:
		agent = c.http.Delete(uri)
	default:
		agent = c.http.Get(uri)
	}
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if body != nil {
		agent.JSON(body)
	}
	if timeout := c.requestTimeout(ctx); timeout > 0 {
		agent.Timeout(timeout)
	}

	done := make(chan reply, 1)
	go func() {
		code, respBody, errs := agent.Bytes()
		done <- reply{status: code, body: respBody, err: errors.Join(errs...)}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return zero, c.fail(method, path, 0, "", ctx.Err())
	case r = <-done:
	}

	if r.err != nil {
		return zero, c.fail(method, path, 0, "", r.err)
	}

	var env models.Response[T]
	decodeErr := json.Unmarshal(r.body, &env)

	if r.status < 200 || r.status > 299 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return zero, c.fail(method, path, r.status, msg, fmt.Errorf("unexpected status %d", r.status))
	}
	if decodeErr != nil {
		return zero, c.fail(method, path, r.status, "", fmt.Errorf("failed to decode response: %w", decodeErr))
	}
	if !env.Success {
		return zero, c.fail(method, path, r.status, env.Message, errors.New("backend reported failure"))
	}
	return env.Data, nil
}

// requestTimeout is the configured timeout, shortened to the context deadline.
func (c *Client) requestTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (timeout == 0 || remaining < timeout) {
			timeout = remaining
		}
	}
	return timeout
}

func (c *Client) fail(method, path string, status int, message string, err error) error {
	rf := &RequestFailed{Method: method, Path: path, Status: status, Message: message, Err: err}
	entry := c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": status,
	})
	if message != "" {
		entry.Error(message)
	} else {
		entry.WithError(err).Error("Backend request failed")
	}
	return rf
}
