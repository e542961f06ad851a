package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-service/internal/api/http"
	"github.com/spec-kit/issue-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/changefeed"
	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/identity"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/persistence"
	"github.com/spec-kit/issue-service/internal/push"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/service"
	"github.com/spec-kit/issue-service/internal/session"
	"github.com/spec-kit/issue-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	fb, err := persistence.NewFirebase(ctx, cfg.Firebase, logger)
	if err != nil {
		logger.Fatal("failed to init firebase", zap.Error(err))
	}
	defer fb.Close()

	store, closeStore, err := openStore(ctx, cfg, pg, redis, fb, logger)
	if err != nil {
		logger.Fatal("failed to open document store", zap.Error(err))
	}
	defer closeStore()

	provider, err := openIdentity(ctx, cfg, store, redis, fb, logger)
	if err != nil {
		logger.Fatal("failed to init identity provider", zap.Error(err))
	}
	relay, err := openRelay(ctx, cfg, fb, logger)
	if err != nil {
		logger.Fatal("failed to init push relay", zap.Error(err))
	}
	registrar := openRegistrar(cfg, redis)

	userRepo := repository.NewUserRepository(store, logger)
	issueRepo := repository.NewIssueRepository(store, logger)
	notificationRepo := repository.NewNotificationRepository(store, logger)

	dispatcher := events.NewQueuedDispatcher(cfg.App.EventQueueSize, logger)

	userService := service.NewUserService(service.UserDependencies{UserRepo: userRepo, Logger: logger})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:  issueRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		IssueRepo:        issueRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		Relay:            relay,
		Metrics:          metrics,
		Logger:           logger,
	})
	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{IssueRepo: issueRepo, Logger: logger})
	accountService := service.NewAccountService(service.AccountDependencies{
		Provider:       provider,
		Users:          userService,
		BootstrapRoles: cfg.Auth.BootstrapRoles,
		Logger:         logger,
	})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	waitWorkers := worker.StartNotificationWorker(workerCtx, notificationService, dispatcher, cfg.App.NotificationWorkers)

	authMiddleware := auth.NewAuthMiddleware(provider, userRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Backend:     cfg.DocStore.Backend,
			Postgres:    pg,
			Redis:       redis,
			Metrics:     metrics,
		}),
		Auth:    handlers.NewAuthHandler(accountService),
		Devices: handlers.NewDevicesHandler(registrar),
		Session: handlers.NewSessionHandler(session.Dependencies{
			Profiles:  userService,
			Registrar: registrar,
			Logger:    logger,
		}, provider, metrics, logger),
		Issues:         handlers.NewIssuesHandler(issueService, metrics),
		Notifications:  handlers.NewNotificationsHandler(notificationService, metrics),
		Users:          handlers.NewUsersHandler(userService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("docstore", cfg.DocStore.Backend),
			zap.String("identity", cfg.Identity.Provider),
			zap.String("push", cfg.Push.Relay),
		)
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopWorkers()
	waitWorkers()
}

// openStore selects the document store backend. The returned func releases
// whatever the backend opened beyond the shared clients.
func openStore(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, redis *persistence.Redis, fb *persistence.Firebase, logger *zap.Logger) (docstore.Store, func(), error) {
	switch cfg.DocStore.Backend {
	case config.DocStorePostgres:
		var feed changefeed.Feed
		if redis.Enabled() {
			feed = changefeed.NewRedisFeed(redis.Client, logger)
		} else {
			feed = changefeed.NewLocalFeed()
		}
		closeFeed := func() {
			if err := feed.Close(); err != nil {
				logger.Warn("close change feed", zap.Error(err))
			}
		}
		return docstore.NewPostgresStore(pg.Pool, feed, logger), closeFeed, nil
	case config.DocStoreFirestore:
		client, err := fb.Firestore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewFirestoreStore(client, logger), func() {}, nil
	default:
		logger.Warn("using in-memory document store; data is lost on restart")
		return docstore.NewMemoryStore(), func() {}, nil
	}
}

func openIdentity(ctx context.Context, cfg *config.Config, store docstore.Store, redis *persistence.Redis, fb *persistence.Firebase, logger *zap.Logger) (identity.Provider, error) {
	if cfg.Identity.Provider == config.IdentityFirebase {
		client, err := fb.Auth(ctx)
		if err != nil {
			return nil, err
		}
		return identity.NewFirebaseProvider(client, logger), nil
	}

	var revocations identity.RevocationList = identity.NewMemoryRevocations()
	if redis.Enabled() {
		revocations = identity.NewRedisRevocations(redis.Client)
	}
	return identity.NewLocalProvider(identity.LocalDependencies{
		Store:       store,
		Tokens:      identity.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		Revocations: revocations,
		BcryptCost:  cfg.Auth.BcryptCost,
		Logger:      logger,
	}), nil
}

func openRelay(ctx context.Context, cfg *config.Config, fb *persistence.Firebase, logger *zap.Logger) (push.Relay, error) {
	switch cfg.Push.Relay {
	case config.PushExpo:
		return push.NewExpoRelay(push.ExpoConfig{
			Endpoint:    cfg.Push.ExpoEndpoint,
			AccessToken: cfg.Push.ExpoAccessToken,
			Timeout:     cfg.Push.Timeout(),
		}), nil
	case config.PushFCM:
		client, err := fb.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("messaging client: %w", err)
		}
		return push.NewFCMRelay(client), nil
	default:
		return push.NewLogRelay(logger), nil
	}
}

func openRegistrar(cfg *config.Config, redis *persistence.Redis) push.Registrar {
	if redis.Enabled() {
		return push.NewRedisRegistrar(redis.Client, cfg.Push.TokenInboxTTL())
	}
	return push.NewMemoryRegistrar(cfg.Push.TokenInboxTTL())
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
