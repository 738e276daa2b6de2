package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"yieldpilot/internal/bot"
	"yieldpilot/internal/cache"
	"yieldpilot/internal/config"
	"yieldpilot/internal/db"
	"yieldpilot/internal/engine"
	"yieldpilot/internal/handler"
	"yieldpilot/internal/job"
	"yieldpilot/internal/provider"
	"yieldpilot/internal/repository"
	"yieldpilot/internal/service"
	"yieldpilot/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "yieldpilot/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newRecRepoFunc         = repository.NewRecommendationRepository
	newHistoryRepoFunc     = repository.NewHistoryRepository
	newPositionRepoFunc    = repository.NewPositionRepository
	newUserRepoFunc        = repository.NewUserRepository
	newCatalogClientFunc   = provider.NewYieldCatalogClient
	newGatewayClientFunc   = provider.NewSwapGatewayClient
	newEngineFunc          = engine.NewEngine
	newRecServiceFunc      = service.NewRecommendationService
	newRebalanceSvcFunc    = service.NewRebalanceService
	newEntitlementSvcFunc  = service.NewEntitlementService
	newShiftMonitorFunc    = job.NewShiftMonitor
	startShiftMonitorFunc  = func(m *job.ShiftMonitor, ctx context.Context) { go m.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           YieldPilot API
// @version         1.0
// @description     DeFi yield rebalancing recommendations and execution.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	recRepo := newRecRepoFunc(db.Pool, tracer)
	historyRepo := newHistoryRepoFunc(db.Pool, tracer)
	positionRepo := newPositionRepoFunc(db.Pool, tracer)
	userRepo := newUserRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		for name, migrate := range map[string]func(context.Context) error{
			"recommendations": recRepo.RunMigrations,
			"history":         historyRepo.RunMigrations,
			"positions":       positionRepo.RunMigrations,
			"users":           userRepo.RunMigrations,
		} {
			if err := migrate(ctx); err != nil {
				log.Fatalf("failed to run %s migrations: %v", name, err)
			}
		}
	}

	catalog := newCatalogClientFunc(tracer, cfg.DefiLlamaBaseURL, cache.Client, time.Duration(cfg.YieldCacheSecs)*time.Second)
	gateway := newGatewayClientFunc(tracer, cfg.SideShiftBaseURL, func() provider.Credentials {
		return provider.Credentials{APIKey: cfg.SideShiftAPIKey, AffiliateID: cfg.SideShiftAffiliateID}
	})

	var completer engine.ChatCompleter
	if cfg.OpenAIAPIKey != "" {
		completer = engine.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
	recEngine := newEngineFunc(completer, cfg.MinAPYImprovement, tracer, nil)

	recService := newRecServiceFunc(tracer, recRepo, positionRepo, catalog, recEngine, cfg.YieldMinTVLUSD, cfg.YieldLimit)
	rebalanceService := newRebalanceSvcFunc(
		tracer, recRepo, historyRepo, gateway,
		cfg.RebalanceGasCostUSD,
		time.Duration(cfg.RebalanceBatchDelayMS)*time.Millisecond,
		nil,
	)
	entitlementService := newEntitlementSvcFunc(tracer, historyRepo, cfg.StarterMonthlyLimit, nil)

	alerts := startTelegramBotFunc(cfg.TelegramBotToken, catalog)
	var notifier job.SettlementNotifier
	if alerts != nil {
		notifier = alerts
	}

	monitor := newShiftMonitorFunc(tracer, historyRepo, rebalanceService, notifier, time.Duration(cfg.ShiftMonitorPollSecs)*time.Second)
	startShiftMonitorFunc(monitor, ctx)

	h := newHandlerFunc(tracer, userRepo, recService, rebalanceService, entitlementService, catalog)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("yieldpilot"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
