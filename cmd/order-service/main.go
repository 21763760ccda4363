package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nanba/pharmacy-backend/internal/auth"
	"github.com/nanba/pharmacy-backend/internal/auth/jwt"
	orderevents "github.com/nanba/pharmacy-backend/internal/order/events"
	orderhandler "github.com/nanba/pharmacy-backend/internal/order/handler"
	orderrepo "github.com/nanba/pharmacy-backend/internal/order/repository"
	orderservice "github.com/nanba/pharmacy-backend/internal/order/service"
	rxevents "github.com/nanba/pharmacy-backend/internal/prescription/events"
	rxhandler "github.com/nanba/pharmacy-backend/internal/prescription/handler"
	"github.com/nanba/pharmacy-backend/internal/prescription/license"
	"github.com/nanba/pharmacy-backend/internal/prescription/ocr"
	rxrepo "github.com/nanba/pharmacy-backend/internal/prescription/repository"
	rxservice "github.com/nanba/pharmacy-backend/internal/prescription/service"
	"github.com/nanba/pharmacy-backend/internal/prescription/upload"
	"github.com/nanba/pharmacy-backend/pkg/config"
	"github.com/nanba/pharmacy-backend/pkg/database"
	"github.com/nanba/pharmacy-backend/pkg/httputil"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/nanba/pharmacy-backend/pkg/messaging"
)

const serviceName = "order-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment).WithLevel(cfg.Server.LogLevel)
	log.Info().Msg("starting Order Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareTopology(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare messaging topology")
	}

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Upload storage
	store, err := newStore(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize upload storage")
	}
	intake := upload.NewIntake(store, cfg.Storage.MaxUploadSize, log)

	engines := newEngineRegistry(&cfg.OCR, log)
	log.Info().Strs("engines", engines.Names()).Msg("text extraction engines registered")

	// Prescriber registry, optionally behind Redis
	prescriberRepo := rxrepo.NewPrescriberRepository(db)
	var lookup license.Lookup = prescriberRepo
	var invalidator rxevents.Invalidator
	if cfg.Cache.RedisURL != "" {
		client, err := rxrepo.NewRedisClient(cfg.Cache.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis url")
		}
		defer client.Close()

		cached := rxrepo.NewCachedLookup(prescriberRepo, client, cfg.Cache.TTL, log)
		lookup = cached
		invalidator = cached

		registryConsumer, err := rxevents.NewRegistryEventConsumer(rmq, cached, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create registry event consumer")
		}
		if err := registryConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start registry event consumer")
		}
	}

	verifier := rxservice.NewVerifier(engines, lookup, intake, log,
		rxservice.WithLocation(cfg.Verification.Location()),
		rxservice.WithTimeout(cfg.OCR.Timeout),
	)

	// Services
	registryService := rxservice.NewRegistryService(
		prescriberRepo,
		invalidator,
		rxevents.NewRegistryEventPublisher(publisher, log),
		log,
	)
	orderService := orderservice.NewOrderService(
		orderrepo.NewOrderRepository(db),
		intake,
		verifier,
		orderevents.NewOrderEventPublisher(publisher, log),
		log,
	)

	// Handlers
	mw := auth.NewMiddleware(jwt.NewManager(&cfg.JWT), log)
	orderHandler := orderhandler.NewOrderHandler(orderService, intake.MaxSize(), log)
	prescriberHandler := rxhandler.NewPrescriberHandler(registryService, log)
	verifyHandler := rxhandler.NewVerifyHandler(verifier, intake, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httputil.HeaderRequestID},
		ExposedHeaders:   []string{httputil.HeaderRequestID, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"ocr":      engines.Names(),
		})
	})

	orderHandler.RegisterRoutes(r, mw)
	rxhandler.RegisterRoutes(r, mw, prescriberHandler, verifyHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop consumers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newStore(ctx context.Context, cfg *config.StorageConfig) (upload.Store, error) {
	if cfg.Driver == config.StorageDriverMinio {
		return upload.NewObjectStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return upload.NewFileStore(cfg.BasePath)
}

// newEngineRegistry registers engines in fallback order. The remote service
// goes first when configured; local CLIs are only registered if installed.
func newEngineRegistry(cfg *config.OCRConfig, log *logger.Logger) *ocr.Registry {
	var engines []ocr.Engine
	if cfg.ServiceURL != "" {
		engines = append(engines, ocr.NewRemoteEngine(cfg.ServiceURL, cfg.Timeout))
	}
	if tess := ocr.NewTesseractEngine(cfg.TesseractPath, cfg.Languages); tess.Available() {
		engines = append(engines, tess)
	} else {
		log.Warn().Str("binary", cfg.TesseractPath).Msg("tesseract not found, image prescriptions need the OCR service")
	}
	if pdftotext := ocr.NewPdftotextEngine(); pdftotext.Available() {
		engines = append(engines, pdftotext)
	}
	if cfg.PDFTextEnabled {
		engines = append(engines, ocr.NewPDFTextEngine())
	}
	return ocr.NewRegistry(log.WithComponent("ocr"), engines...)
}
