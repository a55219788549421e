package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/di"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/repository"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/service"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/worker"
	"github.com/prohmpiriya/class-checkout/pkg/config"
	"github.com/prohmpiriya/class-checkout/pkg/logger"
	"github.com/prohmpiriya/class-checkout/pkg/middleware"
	pkgredis "github.com/prohmpiriya/class-checkout/pkg/redis"
	"github.com/prohmpiriya/class-checkout/pkg/retry"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: "checkout-service",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Checkout Service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry disabled: %v", err))
	}

	prices, err := priceList(cfg.Pricing)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Invalid pricing config: %v", err))
	}

	// Initialize Redis connection; the checkout store falls back to memory
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Redis connection failed, using in-memory checkout store: %v", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info(fmt.Sprintf("Redis connected (%s)", cfg.Redis.Addr()))
		}
	}

	var checkoutRepo repository.CheckoutRepository
	if cfg.Checkout.Store == "redis" && redisClient != nil {
		checkoutRepo = repository.NewRedisCheckoutRepository(redisClient)
	} else {
		memRepo := repository.NewMemoryCheckoutRepository()
		expiryWorker := worker.NewExpiryWorker(memRepo, worker.DefaultExpiryWorkerConfig())
		if err := expiryWorker.Start(ctx); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
		}
		defer expiryWorker.Stop()
		checkoutRepo = memRepo
		appLog.Info("Using in-memory checkout store")
	}

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: "checkout-service",
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		} else {
			eventPublisher = kafkaPublisher
			appLog.Info("Kafka event publisher connected")
		}
	}
	defer eventPublisher.Close()

	// Initialize booking backend gateway
	backend, err := newBackend(cfg, prices)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Booking backend setup failed: %v", err))
	}
	appLog.Info("Booking backend ready", zap.String("mode", cfg.Backend.Mode))

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		Redis:          redisClient,
		CheckoutRepo:   checkoutRepo,
		Backend:        backend,
		EventPublisher: eventPublisher,
		Prices:         prices,
		OrchestratorConfig: &service.OrchestratorConfig{
			SubmitLockTTL: cfg.Checkout.SubmitLockTTL,
		},
		CatalogConfig: &service.CatalogServiceConfig{
			Window: cfg.Checkout.SearchWindow,
		},
		CheckoutConfig: &service.CheckoutServiceConfig{
			CheckoutTTL:     cfg.Checkout.TTL,
			EditLockTTL:     cfg.Checkout.EditLockTTL,
			SearchWindow:    cfg.Checkout.SearchWindow,
			DefaultCurrency: cfg.Pricing.Currency,
		},
	})

	// Setup Gin
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware())
	router.Use(middleware.RequestLogger(appLog))
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
		go cleanupLoop(ctx, limiter, time.Minute)
		router.Use(middleware.RateLimit(limiter))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	}))
	{
		v1.GET("/class-groups", container.CatalogHandler.ListGroups)
		v1.POST("/quotes", container.CheckoutHandler.Quote)

		submitChain := []gin.HandlerFunc{container.CheckoutHandler.Submit}
		if redisClient != nil {
			idempotency := middleware.Idempotency(middleware.DefaultIdempotencyConfig(redisClient.Client()))
			submitChain = append([]gin.HandlerFunc{idempotency}, submitChain...)
		}

		checkouts := v1.Group("/checkouts")
		{
			checkouts.POST("", container.CheckoutHandler.StartCheckout)
			checkouts.GET("/:id", container.CheckoutHandler.GetCheckout)
			checkouts.PUT("/:id/equipment", container.CheckoutHandler.UpdateEquipment)
			checkouts.PUT("/:id/voucher", container.CheckoutHandler.SelectVoucher)
			checkouts.DELETE("/:id/voucher", container.CheckoutHandler.ClearVoucher)
			checkouts.PUT("/:id/funding-method", container.CheckoutHandler.SelectFundingMethod)
			checkouts.POST("/:id/wallet/refresh", container.CheckoutHandler.RefreshWallet)
			checkouts.POST("/:id/submit", submitChain...)
			checkouts.DELETE("/:id", container.CheckoutHandler.Abandon)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Checkout Service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")
	cancel()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry shutdown failed: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

func priceList(cfg config.PricingConfig) (service.PriceList, error) {
	paddle, err := decimal.NewFromString(cfg.PaddleUnitPrice)
	if err != nil {
		return service.PriceList{}, fmt.Errorf("paddle unit price: %w", err)
	}
	ballSet, err := decimal.NewFromString(cfg.BallSetPrice)
	if err != nil {
		return service.PriceList{}, fmt.Errorf("ball set price: %w", err)
	}
	return service.PriceList{PaddleUnitPrice: paddle, BallSetPrice: ballSet}, nil
}

func newBackend(cfg *config.Config, prices service.PriceList) (gateway.BookingBackend, error) {
	if cfg.Backend.Mode == "http" {
		return gateway.NewHTTPBookingBackend(&gateway.HTTPConfig{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
			ReadRetry: &retry.Config{
				MaxRetries:      cfg.Backend.ReadMaxRetries,
				InitialInterval: cfg.Backend.ReadRetryDelay,
				MaxInterval:     2 * time.Second,
				Multiplier:      2.0,
				JitterFactor:    0.1,
			},
		})
	}

	funds, err := decimal.NewFromString(cfg.Backend.MockWalletFunds)
	if err != nil {
		return nil, fmt.Errorf("mock wallet funds: %w", err)
	}
	mock := gateway.NewMockBookingBackend(gateway.MockConfig{
		PaddleUnitPrice: prices.PaddleUnitPrice,
		BallSetPrice:    prices.BallSetPrice,
		StartingBalance: funds,
		Vouchers:        demoVouchers(time.Now()),
	})
	seedDemoData(mock, time.Now())
	return mock, nil
}

// seedDemoData fills the in-memory backend with a weekly class, a one-off
// session, a court slot and an event so the API can be exercised locally
func seedDemoData(m *gateway.MockBookingBackend, now time.Time) {
	y, mo, d := now.Date()
	monday := time.Date(y, mo, d, 19, 0, 0, 0, time.UTC)
	for monday.Weekday() != time.Monday || !monday.After(now) {
		monday = monday.AddDate(0, 0, 1)
	}

	for week := 0; week < 4; week++ {
		start := monday.AddDate(0, 0, 7*week)
		m.AddSession(domain.ClassSessionOccurrence{
			ID:               fmt.Sprintf("demo-beginner-%d", week+1),
			RecurringGroupID: "demo-beginner",
			CoachID:          "coach-1",
			CoachName:        "Aisyah",
			VenueName:        "Pickle Hub",
			VenueState:       "Selangor",
			CourtName:        "Court 2",
			Title:            "Beginner Pickleball",
			Type:             "CLASS",
			StartTime:        start,
			EndTime:          start.Add(90 * time.Minute),
			Price:            decimal.NewFromInt(25),
			Status:           domain.SessionStatusAvailable,
			MaxParticipants:  8,
		})
	}

	clinic := monday.AddDate(0, 0, 2).Add(-10 * time.Hour)
	m.AddSession(domain.ClassSessionOccurrence{
		ID:              "demo-clinic-1",
		CoachID:         "coach-2",
		CoachName:       "Daniel",
		VenueName:       "Pickle Hub",
		VenueState:      "Selangor",
		CourtName:       "Court 1",
		Title:           "Dinking Clinic",
		Type:            "CLINIC",
		StartTime:       clinic,
		EndTime:         clinic.Add(time.Hour),
		Price:           decimal.NewFromInt(40),
		Status:          domain.SessionStatusAvailable,
		MaxParticipants: 6,
	})

	m.AddCourtSlot("demo-court-slot-1", decimal.NewFromInt(40))
	m.AddEvent("demo-social-night", decimal.NewFromInt(15))
}

func demoVouchers(now time.Time) []domain.Voucher {
	expiry := now.AddDate(0, 1, 0)
	return []domain.Voucher{
		{
			ID:            "demo-voucher-10",
			Code:          "WELCOME10",
			Name:          "RM10 off court booking",
			DiscountType:  domain.DiscountFixed,
			DiscountValue: decimal.NewFromInt(10),
			ExpiryDate:    &expiry,
		},
	}
}

func cleanupLoop(ctx context.Context, limiter *middleware.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup()
		}
	}
}
