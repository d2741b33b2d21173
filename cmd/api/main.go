package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/board-api/internal/api/http"
	"github.com/spec-kit/board-api/internal/api/http/handlers"
	"github.com/spec-kit/board-api/internal/auth"
	"github.com/spec-kit/board-api/internal/config"
	"github.com/spec-kit/board-api/internal/events"
	"github.com/spec-kit/board-api/internal/observability"
	"github.com/spec-kit/board-api/internal/persistence"
	"github.com/spec-kit/board-api/internal/repository"
	"github.com/spec-kit/board-api/internal/service"
	"github.com/spec-kit/board-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("board_api")
	dependencies := map[string]handlers.Pinger{}

	var cache service.SessionCache
	switch cfg.Cache.Driver {
	case config.CacheDriverMemory:
		mem, err := persistence.NewMemorySessionCache(cfg.Cache.MaxEntries)
		if err != nil {
			logger.Fatal("failed to init memory session cache", zap.Error(err))
		}
		defer mem.Close()
		logger.Warn("using in-process session cache; sessions are not shared between instances")
		cache = mem
	default:
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		dependencies["redis"] = redis
		cache = persistence.NewRedisSessionCache(redis.Client, cfg.Redis.OpTimeout)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() {
		dependencies["postgres"] = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	tokenService := service.NewTokenService(cfg.Auth, service.TokenDependencies{
		Cache:  cache,
		Events: dispatcher,
		Logger: logger,
	})
	cookies := auth.NewCookieJar(cfg.Auth)
	authMiddleware := auth.NewAuthMiddleware(tokenService, cookies, cfg.Auth.TokenPrefix, logger)

	var authHandler *handlers.AuthHandler
	if pg.Enabled() {
		hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
		if err != nil {
			logger.Fatal("failed to init password hasher", zap.Error(err))
		}
		authService := service.NewAuthService(service.AuthDependencies{
			UserRepo:  repository.NewUserRepository(pg.PoolHandle()),
			Sessions:  tokenService,
			Passwords: hasher,
		})
		authHandler = handlers.NewAuthHandler(authService, cookies)
	} else {
		logger.Warn("account endpoints disabled: POSTGRES_DSN not set")
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:           authHandler,
		Session:        handlers.NewSessionHandler(),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("cache", cfg.Cache.Driver))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
