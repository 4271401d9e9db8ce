package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/trackline/backend/api/handler"
	"github.com/trackline/backend/api/ws"
	"github.com/trackline/backend/internal/config"
	"github.com/trackline/backend/internal/infrastructure/monitor"
	pgInfra "github.com/trackline/backend/internal/infrastructure/postgres"
	redisInfra "github.com/trackline/backend/internal/infrastructure/redis"
	"github.com/trackline/backend/internal/middleware"
	"github.com/trackline/backend/internal/router"
	"github.com/trackline/backend/internal/services/lifecycle"
	"github.com/trackline/backend/internal/token"
	"github.com/trackline/backend/notify"
	"github.com/trackline/backend/notify/redisbroker"
	"github.com/trackline/backend/pkg/httpcontext"
	"github.com/trackline/backend/pkg/logger"
	"github.com/trackline/backend/repository/postgres"
	accessUC "github.com/trackline/backend/usecase/access"
	authUC "github.com/trackline/backend/usecase/auth"
	dashboardUC "github.com/trackline/backend/usecase/dashboard"
	taskUC "github.com/trackline/backend/usecase/task"
	teamUC "github.com/trackline/backend/usecase/team"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Development: cfg.Logger.Development,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.HTTP.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.RegisterCloser("redis", redisClient.Close)

	hub := notify.NewHub(cfg.Realtime.QueueSize, zapLogger)
	var broker notify.Broker = hub
	if cfg.Realtime.Broker == "redis" {
		broker = redisbroker.New(redisClient, hub, zapLogger)
	}
	manager.RegisterCloser("broker", broker.Close)

	mon := monitor.New(pool, redisClient, hub, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	orgRepo := postgres.NewOrganizationRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	teamRepo := postgres.NewTeamRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)

	tokens := token.NewManager(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})

	accessSvc := accessUC.New(teamRepo, taskRepo, zapLogger)
	authUseCase := authUC.New(orgRepo, userRepo, tokens, zapLogger)
	teamUseCase := teamUC.New(teamRepo, userRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, accessSvc, broker, zapLogger)
	dashboardUseCase := dashboardUC.New(teamRepo, taskRepo, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	gateway := ws.NewGateway(tokens, userRepo, teamRepo, broker, zapLogger)

	handlers := router.Handlers{
		Auth:      apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Team:      apiHandler.NewTeamHandler(teamUseCase, ctxAdapter, zapLogger),
		Task:      apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Dashboard: apiHandler.NewDashboardHandler(dashboardUseCase, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		Gateway:   gateway,
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute)
	}

	authMiddleware := middleware.JWTAuth(tokens, zapLogger)
	r := router.New(handlers, authMiddleware, limiter)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Name:         "trackline",
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.HTTP.Address()))
		if err := server.ListenAndServe(cfg.HTTP.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
