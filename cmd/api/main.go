package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/helpdesk-triage/internal/api/http"
	"github.com/spec-kit/helpdesk-triage/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/events"
	"github.com/spec-kit/helpdesk-triage/internal/llm"
	"github.com/spec-kit/helpdesk-triage/internal/lock"
	"github.com/spec-kit/helpdesk-triage/internal/notify"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
	"github.com/spec-kit/helpdesk-triage/internal/persistence"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	"github.com/spec-kit/helpdesk-triage/internal/service"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
	"github.com/spec-kit/helpdesk-triage/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	ticketRepo, messageRepo := newRepositories(pg, logger)

	var cacheClient *redis.Client
	var locker triage.Locker = lock.NewKeyedMutex()
	rdb, err := persistence.ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable; ticket locks are process local and completions are not cached", zap.Error(err))
	} else {
		defer rdb.Close()
		cacheClient = rdb.Client
		locker = lock.NewRedisLocker(rdb.Client, cfg.Triage.LockTTL(), cfg.Triage.LockWait(), logger)
	}

	completer, err := llm.NewCompleter(cfg.Agent, cacheClient, logger)
	if err != nil {
		logger.Fatal("failed to init model client", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	senders := []notify.Sender{notify.NewEmailSender(cfg.Notification, logger, nil)}
	if webhook := notify.NewWebhookSender(cfg.Notification.WebhookURL, 0); webhook != nil {
		senders = append(senders, webhook)
	}
	notifications := worker.NewNotificationWorker(senders, worker.Options{
		QueueSize: cfg.Notification.QueueSize,
		Workers:   cfg.Notification.Workers,
	}, logger)
	service.NewNotificationService(dispatcher, notifications, logger, cfg.Notification).RegisterHandlers()

	policy := triage.NewPolicy(triage.Dependencies{
		Completer: completer,
		Tickets:   ticketRepo,
		Notifier:  service.NewEventNotifier(dispatcher, logger),
		Locker:    locker,
		Metrics:   metrics,
		Logger:    logger,
	})

	ticketService := service.NewTicketService(service.TicketDependencies{
		Policy:      policy,
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	validate := validator.New()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Tickets: handlers.NewTicketsHandler(ticketService, validate),
		Triage:  handlers.NewTriageHandler(ticketService, validate),
		Metrics: handlers.NewMetricsHandler(metrics),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return notifications.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
	delivered, failed := notifications.Stats()
	logger.Info("server stopped", zap.Int64("notifications_delivered", delivered), zap.Int64("notifications_failed", failed))
}

func newRepositories(pg *persistence.Postgres, logger *zap.Logger) (repository.TicketRepository, repository.TicketMessageRepository) {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return repository.NewTicketRepository(pool), repository.NewTicketMessageRepository(pool)
	}
	logger.Warn("using in-memory ticket storage; data is lost on restart")
	return repository.NewMemoryTicketRepository(), repository.NewMemoryMessageRepository()
}
