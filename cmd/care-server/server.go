package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/config"
	"github.com/carehub/carehub/internal/domain/careplan"
	"github.com/carehub/carehub/internal/domain/clients"
	"github.com/carehub/carehub/internal/domain/events"
	"github.com/carehub/carehub/internal/domain/forms"
	"github.com/carehub/carehub/internal/domain/medication"
	"github.com/carehub/carehub/internal/domain/news2"
	"github.com/carehub/carehub/internal/domain/scheduling"
	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/blobstore"
	"github.com/carehub/carehub/internal/platform/db"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/middleware"
	"github.com/carehub/carehub/internal/platform/pdf"
	"github.com/carehub/carehub/internal/platform/querycache"
	"github.com/carehub/carehub/internal/platform/validation"
	"github.com/carehub/carehub/internal/platform/websocket"
)

func newLogger(dev bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "care-server").Logger()
	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, func(), error) {
	if cfg.BlobBackend == "gcs" {
		store, err := blobstore.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			return nil, nil, fmt.Errorf("open gcs bucket: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	return blobstore.NewMemoryStore(), func() {}, nil
}

func diagramOptions(cfg *config.Config) []events.DiagramOption {
	var opts []events.DiagramOption
	if cfg.BodyMapStockFront != "" {
		opts = append(opts, events.WithStockImage(events.SideFront, cfg.BodyMapStockFront))
	}
	if cfg.BodyMapStockBack != "" {
		opts = append(opts, events.WithStockImage(events.SideBack, cfg.BodyMapStockBack))
	}
	return opts
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.IsDev())
	zerolog.DefaultContextLogger = &logger

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	signingKey, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if migrate {
		migrator := db.NewMigrator(pool, migrationFiles(cfg.MigrationsDir))
		if err := db.CreateTenantSchema(ctx, pool, cfg.DefaultTenant, migrator); err != nil {
			return fmt.Errorf("failed to migrate default tenant: %w", err)
		}
		logger.Info().Str("tenant", cfg.DefaultTenant).Msg("default tenant migrated")
	}

	// Event bus: the query cache is invalidated synchronously before
	// realtime clients are told about a change.
	bus := eventbus.New(cfg.EventBusBuffer, logger)
	cache := querycache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	hub := websocket.NewHub(logger)
	bus.SubscribeSync("querycache", cache)
	bus.Subscribe("websocket", hub)
	bus.Start(ctx)
	defer bus.Stop()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()

	renderer := pdf.NewChromeRenderer(pdf.Branding{
		OrgName: cfg.OrgName,
		LogoURL: cfg.OrgLogoURL,
	}, time.Duration(cfg.PDFTimeoutSeconds)*time.Second, logger)

	diagrams := events.NewDiagramResolver(events.NewHTTPProber(5*time.Second),
		cfg.BodyMapFrontURLs, cfg.BodyMapBackURLs, diagramOptions(cfg)...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Tenant-ID", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "25M"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(signingKey))
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: signingKey,
		}))
	}
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Clients
	clientSvc := clients.NewService(clients.NewRepoPG(pool), clients.NewAgreementRepoPG(pool), blobs, bus)
	clients.NewHandler(clientSvc).RegisterRoutes(apiV1)

	// Forms
	formSvc := forms.NewService(forms.NewSchemaRepoPG(pool), forms.NewSubmissionRepoPG(pool), bus)
	forms.NewHandler(formSvc).RegisterRoutes(apiV1)

	// Events and body maps
	eventSvc := events.NewService(events.NewRepoPG(pool), blobs, renderer, diagrams, bus)
	events.NewHandler(eventSvc).RegisterRoutes(apiV1)

	// Care plans
	carePlanSvc := careplan.NewService(careplan.NewCarePlanRepoPG(pool), clientSvc, renderer, bus)
	careplan.NewHandler(carePlanSvc).RegisterRoutes(apiV1)

	// NEWS2 observations
	news2Svc := news2.NewService(news2.NewRepoPG(pool), clientSvc, cache, bus)
	news2.NewHandler(news2Svc).RegisterRoutes(apiV1)

	// Rota
	bookingSvc := scheduling.NewService(scheduling.NewRepoPG(pool), clientSvc, bus)
	scheduling.NewHandler(bookingSvc).RegisterRoutes(apiV1)

	// Medication administration record
	medSvc := medication.NewService(medication.NewRepoPG(pool), clientSvc, bus)
	medication.NewHandler(medSvc).RegisterRoutes(apiV1)

	// Files and realtime
	blobstore.NewHandler(blobs).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return e.Shutdown(shutdownCtx)
}
