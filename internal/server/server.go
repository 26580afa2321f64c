package server

import (
	"fmt"
	"net/http"
	"time"

	"xingqu-shop/internal/config"
	"xingqu-shop/internal/database"
	"xingqu-shop/internal/events"
	"xingqu-shop/internal/metrics"
	custommiddleware "xingqu-shop/internal/middleware"
	"xingqu-shop/internal/repository"
	"xingqu-shop/internal/service"
	"xingqu-shop/internal/storage"
	"xingqu-shop/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the long-lived resources the server is built from.
// Redis and Publisher are optional.
type Dependencies struct {
	DB        *database.Service
	Redis     *redis.Client
	Publisher events.Publisher
	Registry  *prometheus.Registry
	Store     *storage.LocalStore
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	shopMetrics := metrics.New(deps.Registry)

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env != "production"))
	router.Use(shopMetrics.Middleware)
	if deps.Redis != nil && cfg.RateLimit.Requests > 0 {
		router.Use(custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := deps.DB.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   health["status"],
			"database": health,
		})
	})
	router.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	if deps.Store != nil {
		prefix := cfg.Server.UploadURL
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(deps.Store.Dir())))
		router.Handle(prefix+"/*", fileServer)
	}

	db := deps.DB.DB()

	// Initialize repositories
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	bannerRepo := repository.NewBannerRepository(db)

	// Initialize services
	categoryService := service.NewCategoryService(categoryRepo)
	productService := service.NewProductService(productRepo, deps.DB)
	cartService := service.NewCartService(cartRepo, productRepo, shopMetrics)
	couponService := service.NewCouponService(couponRepo)
	addressService := service.NewAddressService(addressRepo, deps.DB)
	bannerService := service.NewBannerService(bannerRepo)
	orderService := service.NewOrderService(
		orderRepo, productRepo, cartRepo, couponRepo, addressRepo,
		deps.DB, deps.Publisher, shopMetrics, logger,
	)

	// Order creation is retried safely when Redis is available
	var idempotency func(http.Handler) http.Handler
	if deps.Redis != nil {
		idempotency = custommiddleware.Idempotency(deps.Redis, custommiddleware.IdempotencyConfig{
			TTL:       24 * time.Hour,
			KeyPrefix: "idempotency",
		}, logger)
	}

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	// Register routes
	transport.NewCategoryHandler(categoryService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewProductHandler(productService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewBannerHandler(bannerService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCartHandler(cartService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewOrderHandler(orderService, idempotency, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCouponHandler(couponService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewAddressHandler(addressService, logger).RegisterRoutes(router, authMiddleware)
	if deps.Store != nil {
		transport.NewUploadHandler(deps.Store, logger).RegisterRoutes(router, authMiddleware)
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	return server
}

// Close releases the publisher, Redis and the database pool, in that order
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.deps.Publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
