package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/internal/router"
	"julianmorley.ca/con-plar/storefront/pkg/ai"
	"julianmorley.ca/con-plar/storefront/pkg/auth"
	"julianmorley.ca/con-plar/storefront/pkg/events"
	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/logging"
	"julianmorley.ca/con-plar/storefront/pkg/mongo"
	"julianmorley.ca/con-plar/storefront/pkg/observability"
	"julianmorley.ca/con-plar/storefront/pkg/redis"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
	"julianmorley.ca/con-plar/storefront/pkg/store"
	"julianmorley.ca/con-plar/storefront/pkg/store/memory"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg, err := global.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelSettings := observability.Settings{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		AuthHeader:     cfg.OtelAuthHeader,
		Insecure:       !cfg.IsProduction(),
	}
	shutdownOtel, err := observability.Setup(ctx, otelSettings)
	if err != nil {
		log.Fatalf("Failed to set up OpenTelemetry: %v", err)
	}

	var logger *zap.Logger
	if otelSettings.Enabled() {
		logger, err = logging.WithOTel(cfg.Env, cfg.LogLevel, cfg.ServiceName)
	} else {
		logger, err = logging.New(cfg.Env, cfg.LogLevel)
	}
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownOtel(flushCtx); err != nil {
		logger.Warn("Failed to flush telemetry", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *global.Config, logger *zap.Logger) error {
	datastore, err := openDatastore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := datastore.Close(closeCtx); err != nil {
			logger.Warn("Failed to close datastore", zap.Error(err))
		}
	}()

	publisher, err := events.NewPublisher(events.Settings{
		Driver:          cfg.EventsDriver,
		RabbitMQURL:     cfg.RabbitMQURL,
		RabbitMQQueue:   cfg.RabbitMQQueue,
		ChannelPoolSize: cfg.ChannelPoolSize,
		KafkaBroker:     cfg.KafkaBroker,
		KafkaTopic:      cfg.KafkaTopic,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	opts := []shop.Option{shop.WithPublisher(publisher)}
	if cfg.RedisAddress != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddress, cfg.RedisPassword, logger)
		if err != nil {
			// the catalog works without a cache
			logger.Warn("Product cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			opts = append(opts, shop.WithProductCache(redis.NewProductCache(client, cfg.CacheTTL)))
		}
	}

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	reporter := ai.NewReporter(ai.Settings{
		Endpoint:   cfg.AzureOpenAI.Endpoint,
		APIKey:     cfg.AzureOpenAI.APIKey,
		Deployment: cfg.AzureOpenAI.Deployment,
		Options:    []option.RequestOption{option.WithQuery("api-version", cfg.AzureOpenAI.APIVersion)},
	}, logger)

	engine := router.NewEngine(router.Dependencies{
		Datastore:      datastore,
		Auth:           authService,
		Accounts:       shop.NewAccounts(datastore, authService, logger),
		Catalog:        shop.NewCatalog(datastore, logger, opts...),
		Carts:          shop.NewCarts(datastore, logger),
		Orders:         shop.NewOrderLifecycle(datastore, logger, opts...),
		Reports:        shop.NewReports(datastore, logger),
		Reporter:       reporter,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server is running", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openDatastore(ctx context.Context, cfg *global.Config, logger *zap.Logger) (store.Datastore, error) {
	if cfg.DatastoreDriver == global.DriverMemory {
		logger.Warn("Using the in-memory datastore; data is lost on restart")
		return memory.New(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, cfg.MongoURI, logger)
	if err != nil {
		return nil, err
	}
	db := mongo.NewStore(client, cfg.MongoDatabase, logger)
	if err := db.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("Failed to ensure indexes", zap.Error(err))
	}
	return db, nil
}
