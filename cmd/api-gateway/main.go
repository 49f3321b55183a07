package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/collegehub-api/api/swagger"
	"github.com/noah-isme/collegehub-api/internal/handler"
	"github.com/noah-isme/collegehub-api/internal/middleware"
	"github.com/noah-isme/collegehub-api/internal/repository"
	"github.com/noah-isme/collegehub-api/internal/router"
	"github.com/noah-isme/collegehub-api/internal/service"
	"github.com/noah-isme/collegehub-api/pkg/cache"
	"github.com/noah-isme/collegehub-api/pkg/config"
	"github.com/noah-isme/collegehub-api/pkg/database"
	"github.com/noah-isme/collegehub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/collegehub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/collegehub-api/pkg/middleware/requestid"
	"github.com/noah-isme/collegehub-api/pkg/storage"
)

// @title CollegeHub API
// @version 1.0.0
// @description College resource library with cross-college paid unlocks
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	collegeRepo := repository.NewCollegeRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	accessRepo := repository.NewResourceAccessRepository(db)
	sessionRepo := repository.NewPaymentSessionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Resources.CacheTTL, logr, cfg.Resources.CacheEnabled && redisClient != nil)
	identitySvc := service.NewIdentityService(userRepo)
	accessSvc := service.NewAccessService(identitySvc, resourceRepo, accessRepo, metrics, logr)
	ledgerSvc := service.NewLedgerService(identitySvc, resourceRepo, accessRepo, logr)
	hierarchySvc := service.NewHierarchyService(identitySvc, collegeRepo, resourceRepo, accessRepo, cacheSvc, cfg.Resources.CacheTTL, logr)
	signer := storage.NewSignedURLSigner(cfg.Resources.SignedURLSecret, cfg.Resources.SignedURLTTL)
	resourceSvc := service.NewResourceService(identitySvc, collegeRepo, resourceRepo, accessSvc, ledgerSvc, signer, userRepo, cacheSvc, validate, logr)
	paymentSvc := service.NewPaymentService(
		identitySvc,
		resourceRepo,
		accessSvc,
		sessionRepo,
		service.NewSimulatedProvider(cfg.Payments.ProviderDelay),
		service.FlatPricing{Amount: cfg.Payments.FlatAmount, Currency: cfg.Payments.Currency},
		metrics,
		logr,
		service.PaymentConfig{SessionTTL: cfg.Payments.SessionTTL, ProviderTimeout: cfg.Payments.ProviderTimeout},
	)
	collegeSvc := service.NewCollegeService(identitySvc, collegeRepo, userRepo, cacheSvc, validate, logr)
	userSvc := service.NewUserService(identitySvc, userRepo, collegeRepo, logr)
	authSvc := service.NewAuthService(userRepo, collegeRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{client: redisClient}
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Setup(r, cfg.APIPrefix, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Colleges:      handler.NewCollegeHandler(collegeSvc),
		Users:         handler.NewUserHandler(userSvc),
		Resources:     handler.NewResourceHandler(hierarchySvc, accessSvc, resourceSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		AccessHistory: handler.NewAccessHistoryHandler(ledgerSvc),
	}, router.Dependencies{
		Tokens:      authSvc,
		Users:       identitySvc,
		Audit:       userRepo,
		PaymentRate: middleware.NewRateLimiter(cfg.Payments.RatePerSecond, cfg.Payments.RateBurst),
		Logger:      logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
