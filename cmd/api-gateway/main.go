package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-points-api/api/swagger"
	"github.com/noah-isme/lms-points-api/internal/handler"
	"github.com/noah-isme/lms-points-api/internal/repository"
	"github.com/noah-isme/lms-points-api/internal/service"
	"github.com/noah-isme/lms-points-api/pkg/cache"
	"github.com/noah-isme/lms-points-api/pkg/config"
	"github.com/noah-isme/lms-points-api/pkg/database"
	"github.com/noah-isme/lms-points-api/pkg/jobs"
	"github.com/noah-isme/lms-points-api/pkg/logger"
	"github.com/noah-isme/lms-points-api/pkg/observability"
)

// @title LMS Points API
// @version 1.0.0
// @description Lesson points ledger, leaderboard and discount claims
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	flush, err := observability.InitSentry(cfg)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, cfg.Database.MigrationsDir); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, leaderboard cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	reads := service.ReadPolicy{Retries: cfg.Ledger.ReadRetries, Delay: cfg.Ledger.ReadRetryDelay}

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	shopRepo := repository.NewShopSettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Leaderboard.CacheTTL, logr, cfg.Leaderboard.CacheEnabled && redisClient != nil)
	leaderboardSvc := service.NewLeaderboardService(userRepo, cacheSvc, cfg.Leaderboard.CacheTTL, reads, logr)

	var aggregationSvc *service.AggregationService
	reconcileQueue := jobs.NewQueue("ledger-reconcile", func(ctx context.Context, job jobs.Job) error {
		return aggregationSvc.HandleJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Ledger.ReconcileWorkers,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnResult: func(_ jobs.Job, err error, d time.Duration) {
			metrics.ObserveReconcileJob(err, d)
		},
	})
	aggregationSvc = service.NewAggregationService(balanceRepo, userRepo, reconcileQueue, leaderboardSvc, metrics, logr, cfg.Ledger.ReconcileInterval)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	ledgerSvc := service.NewLedgerService(db, scoreRepo, groupRepo, userRepo, aggregationSvc, leaderboardSvc, validate, metrics, reads, logr, service.LedgerConfig{MaxScore: cfg.Ledger.MaxScore})
	shopSvc := service.NewShopService(shopRepo, validate, reads, logr)
	claimSvc := service.NewClaimService(claimRepo, userRepo, shopSvc, leaderboardSvc, metrics, reads, logr)
	standingSvc := service.NewStandingService(userRepo, leaderboardSvc, claimRepo, shopSvc, reads, logr)

	reconcileQueue.Start(ctx)
	defer reconcileQueue.Stop()
	aggregationSvc.StartReconciler(ctx)

	router := newRouter(cfg, logr, routerDeps{
		auth:        authSvc,
		metrics:     metrics,
		scores:      handler.NewScoreHandler(ledgerSvc),
		claims:      handler.NewClaimHandler(claimSvc),
		students:    handler.NewStudentHandler(standingSvc, aggregationSvc),
		leaderboard: handler.NewLeaderboardHandler(leaderboardSvc),
		shop:        handler.NewShopHandler(shopSvc),
		login:       handler.NewAuthHandler(authSvc),
		probes: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis": handler.PingerFunc(func(ctx context.Context) error {
				return cacheRepo.Ping(ctx)
			}),
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
