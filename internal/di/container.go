package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oakmart/api/internal/platform/config"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
	"github.com/oakmart/api/internal/repositories"
	firestoreRepo "github.com/oakmart/api/internal/repositories/firestore"
	"github.com/oakmart/api/internal/services"
)

// Repositories bundles the persistence contracts backed by Firestore.
type Repositories struct {
	Catalog   repositories.CatalogRepository
	Carts     repositories.CartRepository
	Addresses repositories.AddressRepository
	Cards     repositories.StoredCardRepository
	Orders    repositories.OrderRepository
	Shipments repositories.ShipmentRepository
	Counters  repositories.CounterRepository
}

// Services bundles the service-layer contracts that handlers rely upon. Concrete
// implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog   services.CatalogService
	Cart      services.CartService
	Orders    services.OrderService
	Shipments services.ShipmentService
	Addresses services.AddressService
	Cards     services.StoredCardService
}

// ContainerDeps carries infrastructure constructed by the caller: the Firestore
// provider, the payment gateway, and the order event publisher. The logger hook
// is shared by every service; a nil hook disables service-level logging.
type ContainerDeps struct {
	Provider *pfirestore.Provider
	Gateway  services.PaymentGateway
	Events   services.OrderEventPublisher
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories Repositories
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring supplies a
// real Firestore provider and payment gateway; tests can assemble Services
// directly from in-memory fakes instead.
func NewContainer(ctx context.Context, cfg config.Config, deps ContainerDeps) (*Container, error) {
	if deps.Provider == nil {
		return nil, errors.New("firestore provider is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}

	repos, err := buildRepositories(deps.Provider)
	if err != nil {
		return nil, err
	}

	svc, err := buildServices(cfg, repos, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: repos,
		Services:     svc,
	}, nil
}

func buildRepositories(provider *pfirestore.Provider) (Repositories, error) {
	var repos Repositories
	var err error

	if repos.Catalog, err = firestoreRepo.NewCatalogRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build catalog repository: %w", err)
	}
	if repos.Carts, err = firestoreRepo.NewCartRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build cart repository: %w", err)
	}
	if repos.Addresses, err = firestoreRepo.NewAddressRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build address repository: %w", err)
	}
	if repos.Cards, err = firestoreRepo.NewStoredCardRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build stored card repository: %w", err)
	}
	if repos.Orders, err = firestoreRepo.NewOrderRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build order repository: %w", err)
	}
	if repos.Shipments, err = firestoreRepo.NewShipmentRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build shipment repository: %w", err)
	}
	if repos.Counters, err = firestoreRepo.NewCounterRepository(provider); err != nil {
		return Repositories{}, fmt.Errorf("build counter repository: %w", err)
	}

	return repos, nil
}

func buildServices(cfg config.Config, repos Repositories, deps ContainerDeps) (Services, error) {
	var svc Services

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: repos.Catalog,
		Clock:   time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:   repos.Carts,
		Catalog: repos.Catalog,
		Clock:   time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	addressSvc, err := services.NewAddressService(services.AddressServiceDeps{
		Addresses: repos.Addresses,
		Clock:     time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build address service: %w", err)
	}
	svc.Addresses = addressSvc

	cardSvc, err := services.NewStoredCardService(services.StoredCardServiceDeps{
		Cards: repos.Cards,
		Clock: time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stored card service: %w", err)
	}
	svc.Cards = cardSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    repos.Orders,
		Carts:     repos.Carts,
		Catalog:   repos.Catalog,
		Addresses: repos.Addresses,
		Cards:     repos.Cards,
		Counters:  repos.Counters,
		Shipments: repos.Shipments,
		Gateway:   deps.Gateway,
		Events:    deps.Events,
		Shipping: services.ShippingDefaults{
			Carrier:      cfg.Shipping.DefaultCarrier,
			DeliveryDays: cfg.Shipping.DeliveryDays,
		},
		ChargeTimeout: cfg.Payments.ChargeTimeout,
		Clock:         time.Now,
		Logger:        deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	shipmentSvc, err := services.NewShipmentService(services.ShipmentServiceDeps{
		Shipments: repos.Shipments,
		Orders:    repos.Orders,
		Events:    deps.Events,
		Clock:     time.Now,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipment service: %w", err)
	}
	svc.Shipments = shipmentSvc

	return svc, nil
}
