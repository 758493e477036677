package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hatid-express/client-core/internal/application"
	"github.com/hatid-express/client-core/internal/backend"
	"github.com/hatid-express/client-core/internal/config"
	"github.com/hatid-express/client-core/internal/domain/fare"
	"github.com/hatid-express/client-core/internal/events"
	"github.com/hatid-express/client-core/internal/handler"
	"github.com/hatid-express/client-core/internal/location"
	"github.com/hatid-express/client-core/internal/logger"
	"github.com/hatid-express/client-core/internal/middleware"
	"github.com/hatid-express/client-core/internal/platform"
	"github.com/hatid-express/client-core/internal/repository"
	"github.com/hatid-express/client-core/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "client-core")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting client-core agent",
		zap.String("port", cfg.Port),
		zap.String("api_url", cfg.APIBaseURL),
	)

	// Connect to the local database
	db, err := gorm.Open(postgres.Open(cfg.DBConfig.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&repository.KVModel{}, &repository.LocationSnapshotModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}

	// Connect to the device shell's Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Kafka producer when a broker is configured
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, log)
		defer func() { _ = producer.Close() }()
	} else {
		log.Info("no kafka brokers configured, event publishing disabled")
	}

	// Initialize storage
	kvStore := repository.NewGormKVStore(db)
	recordStore := repository.NewLocationRecordStore(kvStore, db)

	// Initialize the location cache service
	locationService := location.NewService(location.Deps{
		GPS:         platform.NewGPSProvider(rdb),
		Network:     platform.NewNetworkProvider(rdb),
		Permissions: platform.NewRedisPermissions(rdb),
		Store:       recordStore,
		Stream:      platform.NewFixStream(rdb),
		Logger:      log.Named("location"),
		Config: location.Config{
			StaleThreshold:    cfg.Location.StaleThreshold,
			MaxAge:            cfg.Location.MaxAge,
			UpdateInterval:    cfg.Location.UpdateInterval,
			MinAccuracyMeters: cfg.Location.MinAccuracyMeters,
		},
		Fallback: location.Fix{
			Latitude:  cfg.Location.FallbackLatitude,
			Longitude: cfg.Location.FallbackLongitude,
		},
		GPSTimeout: cfg.Location.GPSTimeout,
	})
	if err := locationService.Start(ctx); err != nil {
		log.Fatal("failed to start location service", zap.Error(err))
	}
	defer locationService.Stop()

	// Initialize stores and seed the sender from the stored session
	deliveryStore := store.NewDeliveryStore()
	selectionStore := store.NewSelectionStore()

	sessionService := application.NewSessionService(kvStore, deliveryStore, log)
	sessionService.SeedSender(ctx)

	// Initialize backend client and application services
	backendClient := backend.New(cfg.APIBaseURL, nil)

	quoteService := application.NewQuoteService(fare.NewStandardEstimator(), deliveryStore, log.Named("quote"))
	defer quoteService.Stop()

	routeService := application.NewRouteService(backendClient, deliveryStore, quoteService, log.Named("route"))
	defer routeService.Stop()

	orderService := application.NewOrderService(deliveryStore, selectionStore, backendClient, producer, log.Named("order"))

	// Initialize HTTP handlers
	locationHandler := handler.NewLocationHandler(ctx, locationService, recordStore)
	draftHandler := handler.NewDraftHandler(deliveryStore, selectionStore, routeService, quoteService)
	orderHandler := handler.NewOrderHandler(orderService, sessionService)
	placesHandler := handler.NewPlacesHandler(backendClient, log.Named("places"))

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	locationHandler.RegisterRoutes(&router.RouterGroup)
	draftHandler.RegisterRoutes(&router.RouterGroup)
	orderHandler.RegisterRoutes(&router.RouterGroup)
	placesHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down client-core agent...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("client-core agent stopped")
}
