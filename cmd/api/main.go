package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/oakmart/api/internal/di"
	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/handlers"
	"github.com/oakmart/api/internal/payments"
	"github.com/oakmart/api/internal/platform/auth"
	"github.com/oakmart/api/internal/platform/config"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
	"github.com/oakmart/api/internal/platform/idempotency"
	"github.com/oakmart/api/internal/platform/jobs"
	"github.com/oakmart/api/internal/platform/observability"
	"github.com/oakmart/api/internal/platform/secrets"
	firestoreRepo "github.com/oakmart/api/internal/repositories/firestore"
	"github.com/oakmart/api/internal/services"
)

const (
	idempotencyCleanupInterval = time.Hour
	idempotencyCleanupBatch    = 250
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger.Named("secrets"))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	eventPublisher, pubsubClient, eventTopic, err := newOrderEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	if eventPublisher == nil {
		logger.Warn("order events topic not configured; events disabled")
	}
	defer func() {
		if eventTopic != nil {
			eventTopic.Stop()
		}
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAudience(cfg.Auth.Audience),
	)
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	cardRepo, err := firestoreRepo.NewStoredCardRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise stored card repository", zap.Error(err))
	}

	gateway, err := newPaymentGateway(cfg, cardRepo, logger.Named("payments"))
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, di.ContainerDeps{
		Provider: firestoreProvider,
		Gateway:  gateway,
		Events:   eventPublisher,
		Logger:   observability.ServiceLogger(),
	})
	if err != nil {
		logger.Fatal("failed to assemble services", zap.Error(err))
	}
	svc := container.Services

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(idempotencyCleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), idempotencyCleanupBatch)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		idempotencyMiddleware,
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck(firestoreReadinessCheck(firestoreClient)),
	)

	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog)
	meHandlers := handlers.NewMeHandlers(authenticator,
		handlers.NewCartHandlers(authenticator, svc.Cart),
		handlers.NewAddressHandlers(svc.Addresses),
		handlers.NewCardHandlers(svc.Cards),
	)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, svc.Shipments)
	shipmentHandlers := handlers.NewShipmentHandlers(authenticator, svc.Shipments)
	adminHandlers := handlers.NewAdminHandlers(authenticator, svc.Catalog, svc.Orders, svc.Shipments)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithShipmentRoutes(shipmentHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("oakmart api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithLogger(logger),
	}
	if project := strings.TrimSpace(os.Getenv("API_SECRETS_PROJECT_ID")); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	} else if project := strings.TrimSpace(os.Getenv("API_FIRESTORE_PROJECT_ID")); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if fallback := strings.TrimSpace(os.Getenv("API_SECRETS_FALLBACK_FILE")); fallback != "" {
		opts = append(opts, secrets.WithFallbackFile(fallback))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// newOrderEventPublisher builds the Pub/Sub publisher when a topic is
// configured. Returning a nil publisher leaves event emission disabled.
func newOrderEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, *pubsub.Client, *pubsub.Topic, error) {
	topicName := strings.TrimSpace(cfg.PubSub.OrderEventsTopic)
	if topicName == "" {
		return nil, nil, nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
	if err != nil {
		topic.Stop()
		_ = client.Close()
		return nil, nil, nil, err
	}
	return publisher, client, topic, nil
}

func newPaymentGateway(cfg config.Config, cards payments.StoredCardResolver, logger *zap.Logger) (*payments.Manager, error) {
	providers := map[domain.PaymentMethod]payments.Provider{
		domain.PaymentMethodCOD: payments.NewCODProvider(),
	}

	if apiKey := strings.TrimSpace(cfg.Payments.StripeAPIKey); apiKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:      apiKey,
			StoredCards: cards,
			Logger: func(ctx context.Context, event string, fields map[string]any) {
				zFields := make([]zap.Field, 0, len(fields)+1)
				zFields = append(zFields, zap.String("event", event))
				for k, v := range fields {
					zFields = append(zFields, zap.Any(k, v))
				}
				logger.Debug("stripe log", zFields...)
			},
			Clock: time.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("stripe provider: %w", err)
		}
		providers[domain.PaymentMethodCard] = stripeProvider
	} else {
		logger.Warn("stripe api key not configured; card payments disabled")
	}

	return payments.NewManager(providers)
}

func firestoreReadinessCheck(client *firestore.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
		defer cancel()
		iter := client.Collections(ctx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
