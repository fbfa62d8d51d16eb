package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/catalog"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/query"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/cache"
	"storefront/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := setupLogger(cfg.Log)

	// --- Initialize Fiber App for the configured mode ---
	var (
		app     *fiber.App
		cleanup func() error
	)
	switch cfg.App.Mode {
	case config.ModeBackend:
		app, cleanup, err = NewBackendApp(cfg, log)
	default:
		app, cleanup, err = NewStorefrontApp(context.Background(), cfg, log)
	}
	if err != nil {
		log.Fatalf("Failed to initialize %s: %v", cfg.App.Mode, err)
	}

	// --- Start HTTP Server ---
	log.WithFields(logrus.Fields{"mode": cfg.App.Mode, "port": cfg.App.Port}).Info("Starting server")

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.App.Port); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	if err := cleanup(); err != nil {
		log.WithError(err).Error("Error releasing resources")
	}
	log.Info("Server gracefully stopped")
}

// setupLogger configures logrus from the log settings.
func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", cfg.Level).Warn("Unknown log level, using info")
	}
	log.SetLevel(level)
	return log
}

func newFiberApp(cfg *config.Config, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "storefront " + cfg.App.Mode,
		DisableStartupMessage: cfg.App.Env == "test",
	})
	app.Use(middleware.RequestLogger(log))
	app.Use(middleware.CORS())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"mode":   cfg.App.Mode,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	return app
}

// NewBackendApp wires the product REST API: repository, optional RabbitMQ
// events, service and handler.
func NewBackendApp(cfg *config.Config, log *logrus.Logger) (*fiber.App, func() error, error) {
	productRepo, closeDB, err := repositories.NewProductRepository(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver == "memory" {
		seedProducts(productRepo, log)
	}

	var (
		events  services.EventPublisher
		closeMQ = func() error { return nil }
	)
	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL}, log)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		events = mqClient
		closeMQ = mqClient.Close
	}

	productService := services.NewProductService(productRepo, events, log)
	productHandler := handlers.NewProductHandler(productService, log)

	app := newFiberApp(cfg, log)
	productHandler.RegisterRoutes(app.Group("/api"))

	cleanup := func() error {
		return errors.Join(closeMQ(), closeDB())
	}
	return app, cleanup, nil
}

// NewStorefrontApp wires the storefront: backend client, query cache with the
// configured store, catalog queries and the view handler.
func NewStorefrontApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*fiber.App, func() error, error) {
	store, closeStore, err := newQueryStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log)
	qc := query.NewClient(store, query.Options{
		Retry:      cfg.Cache.Retry,
		RetryDelay: cfg.Cache.RetryDelay,
		Logger:     log,
	})
	fresh := catalog.DefaultFreshness()
	fresh.List = cfg.Cache.ListStaleTime
	fresh.Search = cfg.Cache.SearchStaleTime
	fresh.Paged = cfg.Cache.PagedStaleTime
	fresh.Feed = cfg.Cache.PagedStaleTime
	queries := catalog.NewQueries(client, qc, fresh)

	// Keep the catalog warm so the first visitor is served from cache.
	watcher := queries.WatchProducts(ctx, func(res query.Result[[]models.Product]) {
		switch {
		case res.Err != nil:
			log.WithError(res.Err).Warn("Catalog refresh failed")
		case !res.IsFetching:
			log.WithField("products", len(res.Data)).Debug("Catalog loaded")
		}
	})

	app := newFiberApp(cfg, log)
	handlers.NewCatalogHandler(queries, cfg.Catalog, log).RegisterRoutes(app)

	cleanup := func() error {
		watcher.Close()
		return closeStore()
	}
	return app, cleanup, nil
}

func newQueryStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (query.Store, func() error, error) {
	if cfg.Cache.Store == "redis" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return query.NewRedisStore(rdb, cfg.Cache.GCTime), rdb.Close, nil
	}
	store, err := query.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.GCTime)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache store: %w", err)
	}
	return store, func() error { return nil }, nil
}

// seedProducts fills an in-memory catalog with a few products to browse.
func seedProducts(repo repositories.ProductRepository, log *logrus.Logger) {
	products := []models.Product{
		{Name: "Coca Cola 600ml", Description: "Refresco de cola", Barcode: "7501055300075",
			PublicPrice: decimal.RequireFromString("18.50"), PurchasePrice: decimal.RequireFromString("13.00"), Quantity: 24},
		{Name: "Agua Ciel 1L", Description: "Agua purificada", Barcode: "7501055310883",
			PublicPrice: decimal.RequireFromString("12.00"), PurchasePrice: decimal.RequireFromString("8.00"), Quantity: 4},
		{Name: "Sabritas Original 45g", Description: "Papas fritas", Barcode: "7501011115163",
			PublicPrice: decimal.RequireFromString("19.00"), PurchasePrice: decimal.RequireFromString("14.50"), Quantity: 0},
	}

	for i := range products {
		if err := repo.Create(context.Background(), &products[i]); err != nil {
			log.WithError(err).Errorf("Error seeding product %s", products[i].Name)
			continue
		}
		log.WithField("id", products[i].ID).Debugf("Seeded product: %s", products[i].Name)
	}
}
