package di

import (
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/handler"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/repository"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/service"
	"github.com/prohmpiriya/class-checkout/pkg/redis"
)

// Container holds all dependencies for the checkout service
type Container struct {
	// Infrastructure
	Redis *redis.Client

	// Repositories
	CheckoutRepo repository.CheckoutRepository

	// Gateways
	Backend gateway.BookingBackend

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	Pricing         *service.PriceCalculator
	Orchestrator    *service.PaymentOrchestrator
	CatalogService  service.CatalogService
	CheckoutService service.CheckoutService

	// Handlers
	HealthHandler   *handler.HealthHandler
	CatalogHandler  *handler.CatalogHandler
	CheckoutHandler *handler.CheckoutHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	// Redis is optional; nil means the checkout store lives in memory
	Redis              *redis.Client
	CheckoutRepo       repository.CheckoutRepository
	Backend            gateway.BookingBackend
	EventPublisher     service.EventPublisher
	Prices             service.PriceList
	OrchestratorConfig *service.OrchestratorConfig
	CatalogConfig      *service.CatalogServiceConfig
	CheckoutConfig     *service.CheckoutServiceConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		Redis:          cfg.Redis,
		CheckoutRepo:   cfg.CheckoutRepo,
		Backend:        cfg.Backend,
		EventPublisher: cfg.EventPublisher,
	}
	if c.EventPublisher == nil {
		c.EventPublisher = service.NewNoOpEventPublisher()
	}

	// Initialize services
	c.Pricing = service.NewPriceCalculator(cfg.Prices)
	c.Orchestrator = service.NewPaymentOrchestrator(
		c.CheckoutRepo,
		c.Backend,
		c.Pricing,
		c.EventPublisher,
		cfg.OrchestratorConfig,
	)
	c.CatalogService = service.NewCatalogService(c.Backend, cfg.CatalogConfig)
	c.CheckoutService = service.NewCheckoutService(
		c.CheckoutRepo,
		c.Backend,
		c.Pricing,
		c.Orchestrator,
		cfg.CheckoutConfig,
	)

	// Initialize handlers
	components := map[string]handler.Pinger{"redis": nil}
	if c.Redis != nil {
		components["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(components)
	c.CatalogHandler = handler.NewCatalogHandler(c.CatalogService)
	c.CheckoutHandler = handler.NewCheckoutHandler(c.CheckoutService)

	return c
}
