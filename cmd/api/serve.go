package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/civicdesk/grievance-service/internal/api/http"
	"github.com/civicdesk/grievance-service/internal/api/http/handlers"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/channel/telegram"
	"github.com/civicdesk/grievance-service/internal/classifier"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/intake"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/persistence"
	"github.com/civicdesk/grievance-service/internal/repository"
	"github.com/civicdesk/grievance-service/internal/service"
	"github.com/civicdesk/grievance-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, chat channels and background workers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	readiness := map[string]handlers.Pinger{}
	var complaintRepo repository.ComplaintRepository
	var officialRepo repository.OfficialRepository
	if pool := pg.PoolHandle(); pool != nil {
		complaintRepo = repository.NewComplaintRepository(pool)
		officialRepo = repository.NewOfficialRepository(pool)
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory complaint store; data is lost on restart")
		complaintRepo = repository.NewMemoryComplaintRepository()
		officialRepo = repository.NewMemoryOfficialRepository()
	}

	var sessionStore intake.SessionStore = intake.NewMemorySessionStore()
	if cfg.Intake.SessionBackend == "redis" {
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		sessionStore = intake.NewRedisSessionStore(rdb.Client, cfg.Intake.SessionTTL)
		readiness["redis"] = rdb
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	secrets := auth.NewSecretManager(cfg.Auth.BcryptCost)
	cls, err := buildClassifier(cfg.Classifier, metrics, logger)
	if err != nil {
		return err
	}

	gate := service.NewMutationGate(service.GateDependencies{
		ComplaintRepo:              complaintRepo,
		Secrets:                    secrets,
		Dispatcher:                 dispatcher,
		Metrics:                    metrics,
		Logger:                     logger,
		MaxFailedAttemptsPerMinute: cfg.Auth.MaxFailedAttemptsPerMinute,
	})
	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		ComplaintRepo: complaintRepo,
		Secrets:       secrets,
		Classifier:    cls,
		Gate:          gate,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	authService := service.NewAuthService(cfg.Auth, officialRepo)

	registry := intake.NewRegistry(sessionStore, cfg.Intake.SessionTTL,
		intake.WithMetrics(metrics), intake.WithLogger(logger))
	engine := intake.NewEngine(registry, cls, complaintService, intake.Rules{
		MinDescriptionLength: cfg.Intake.MinDescriptionLength,
		MinSecretLength:      cfg.Intake.MinSecretLength,
		MaxSecretLength:      auth.MaxSecretLength,
	}, metrics, logger)

	notifiers := map[string]service.Notifier{}
	var bot *telegram.Bot
	if cfg.Telegram.BotToken != "" {
		api, err := telegram.Connect(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
		bot = telegram.New(api, engine, cfg.Intake.InboxShards, cfg.Telegram.PollTimeoutSec, logger)
		notifiers[telegram.Scheme] = bot
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification), notifiers)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Complaints:     handlers.NewComplaintsHandler(complaintService, gate),
		Chat:           handlers.NewChatHandler(engine, logger),
		Officials:      handlers.NewOfficialsHandler(authService, complaintService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), officialRepo),
		Metrics:        metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error {
		return worker.RunSessionSweeper(gctx, registry, cfg.Intake.SweepInterval, logger)
	})
	if bot != nil {
		g.Go(func() error { return bot.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildClassifier(cfg config.ClassifierConfig, metrics *observability.Metrics, logger *zap.Logger) (classifier.Classifier, error) {
	var inner classifier.Classifier
	switch cfg.Provider {
	case "openai":
		inner = classifier.NewOpenAIClassifier(classifier.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.OpenAIModel, logger)
	case "keyword":
		inner = classifier.NewKeywordClassifier(classifier.DefaultVocabulary())
	default:
		return nil, fmt.Errorf("unsupported classifier provider %q", cfg.Provider)
	}
	logger.Info("classifier configured", zap.String("provider", inner.Name()), zap.Duration("timeout", cfg.Timeout))
	return classifier.Bounded(inner, cfg.Timeout, metrics, logger), nil
}
