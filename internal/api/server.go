package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sunbrew/cafe-order-api/internal/config"
	"github.com/sunbrew/cafe-order-api/internal/database"
	"github.com/sunbrew/cafe-order-api/internal/handlers"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/internal/outbox"
	"github.com/sunbrew/cafe-order-api/internal/repository"
	"github.com/sunbrew/cafe-order-api/internal/service"
	"github.com/sunbrew/cafe-order-api/pkg/kafka"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
	"github.com/sunbrew/cafe-order-api/pkg/middleware"
)

type Server struct {
	config          *config.Config
	logger          logger.Logger
	router          *mux.Router
	httpServer      *http.Server
	db              *database.Database
	orderService    *service.OrderService
	menuService     *service.MenuService
	outboxProcessor *outbox.Processor
	kafkaProducer   *kafka.Producer
	kafkaConsumer   *kafka.Consumer
	rateLimiter     *middleware.RateLimiterMiddleware
}

// NewServer wires the whole service together: database, repositories,
// services, the outbox processor and the Kafka pipeline.
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	r := mux.NewRouter()

	db, err := database.New(cfg, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	outboxRepo := repository.NewOutboxRepository(db, logger)
	orderRepo := repository.NewOrderRepository(db, outboxRepo, logger)
	menuRepo := repository.NewMenuRepository(db, logger)

	kafkaProducer, err := kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		RetryMax: cfg.Kafka.ProducerRetryMax,
		Timeout:  cfg.Kafka.ProducerTimeout,
	}, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	orderService := service.NewOrderService(orderRepo, logger)
	menuService := service.NewMenuService(menuRepo, logger)

	outboxProcessor := outbox.NewProcessor(outboxRepo, outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}, logger)

	kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.OrdersTopic, logger)
	outboxProcessor.RegisterHandler(models.EventOrderCreated, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventOrderStatusChanged, kafkaHandler)

	kafkaConsumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        []string{cfg.Kafka.OrdersTopic},
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	kafkaConsumer.RegisterHandler(cfg.Kafka.OrdersTopic, handlers.NewOrderEventsHandler(logger))

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:   100,
		GlobalRefillRate:  50,
		IPMaxTokens:       20,
		IPRefillRate:      5,
		TrustForwardedFor: cfg.Env != "production",
	}, logger)

	server := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:          logger,
		config:          cfg,
		db:              db,
		orderService:    orderService,
		menuService:     menuService,
		outboxProcessor: outboxProcessor,
		kafkaProducer:   kafkaProducer,
		kafkaConsumer:   kafkaConsumer,
		rateLimiter:     rateLimiter,
	}

	server.setupRoutes()

	outboxProcessor.Start()

	if err := kafkaConsumer.Start(); err != nil {
		// Non-fatal: the API keeps serving and events stay in the outbox
		logger.Error("Failed to start Kafka consumer", "error", err)
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.outboxProcessor.Stop()
	s.rateLimiter.Stop()

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimiter.Middleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Customer endpoints
	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.getCustomerOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/status", s.getOrderStatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/menu", s.getMenuHandler).Methods(http.MethodGet)

	// Staff endpoints
	api.HandleFunc("/orders/{id:[0-9]+}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)
	api.HandleFunc("/kitchen/orders", s.getKitchenOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/staff/orders", s.getStaffOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/staff/completed-orders", s.getCompletedOrdersHandler).Methods(http.MethodGet)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
