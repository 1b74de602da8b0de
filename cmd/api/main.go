package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/devmatch/request-service/internal/api/http"
	"github.com/devmatch/request-service/internal/api/http/handlers"
	"github.com/devmatch/request-service/internal/auth"
	"github.com/devmatch/request-service/internal/config"
	"github.com/devmatch/request-service/internal/events"
	"github.com/devmatch/request-service/internal/observability"
	"github.com/devmatch/request-service/internal/persistence"
	"github.com/devmatch/request-service/internal/repository"
	"github.com/devmatch/request-service/internal/service"
	"github.com/devmatch/request-service/internal/worker"
	"github.com/devmatch/request-service/internal/workflow"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		requestRepo repository.RequestRepository
		engineRepo  repository.RequestRepository
		matchRepo   repository.MatchRepository
		historyRepo repository.RequestHistoryRepository
		userRepo    repository.UserRepository
		resetRepo   repository.PasswordResetRepository
	)
	if pool != nil {
		cached := repository.NewCachedRequestRepository(
			repository.NewRequestRepository(pool), redis.Client, cfg.Cache.RequestTTL(), logger)
		requestRepo = cached
		engineRepo = cached.Authoritative()
		matchRepo = repository.NewMatchRepository(pool)
		historyRepo = repository.NewRequestHistoryRepository(pool)
		userRepo = repository.NewUserRepository(pool)
		resetRepo = repository.NewPasswordResetRepository(pool)
	} else {
		requestRepo = repository.NewMemoryRequestRepository()
		engineRepo = requestRepo
		matchRepo = repository.NewMemoryMatchRepository()
		historyRepo = repository.NewMemoryHistoryRepository()
		userRepo = repository.NewMemoryUserRepository()
		resetRepo = repository.NewMemoryPasswordResetRepository()
	}

	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventRequestStatusChanged, func(_ context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.RequestStatusChangedPayload); ok {
			metrics.RecordTransition(string(payload.PreviousStatus), string(payload.NewStatus))
		}
		return nil
	})

	engine := workflow.NewEngine(workflow.EngineDependencies{
		Requests:   engineRepo,
		Matches:    matchRepo,
		History:    historyRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	requestService := service.NewRequestService(service.RequestDependencies{
		RequestRepo: requestRepo,
		MatchRepo:   matchRepo,
		HistoryRepo: historyRepo,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	matchService := service.NewMatchService(service.MatchDependencies{
		RequestRepo: requestRepo,
		MatchRepo:   matchRepo,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
	})

	notificationService := service.NewNotificationService(dispatcher, logger)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Requests:       handlers.NewRequestsHandler(requestService),
		Matches:        handlers.NewMatchesHandler(matchService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
