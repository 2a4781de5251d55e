package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/travel-approval-service/internal/api/http"
	"github.com/spec-kit/travel-approval-service/internal/api/http/handlers"
	"github.com/spec-kit/travel-approval-service/internal/auth"
	"github.com/spec-kit/travel-approval-service/internal/blob"
	"github.com/spec-kit/travel-approval-service/internal/config"
	"github.com/spec-kit/travel-approval-service/internal/events"
	"github.com/spec-kit/travel-approval-service/internal/mailbox"
	"github.com/spec-kit/travel-approval-service/internal/observability"
	"github.com/spec-kit/travel-approval-service/internal/persistence"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	"github.com/spec-kit/travel-approval-service/internal/repository/memory"
	"github.com/spec-kit/travel-approval-service/internal/service"
	"github.com/spec-kit/travel-approval-service/internal/worker"
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

	metrics := observability.NewMetrics()
	deps := map[string]handlers.Pinger{}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos repository.Repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresRepositories(pool)
		deps["postgres"] = pg
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		repos = memory.NewStore().Repositories()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	if redis.Handle() != nil {
		deps["redis"] = redis
	}

	var blobs blob.Store
	if cfg.Blob.Endpoint != "" {
		minioStore, err := blob.NewMinioStore(ctx, cfg.Blob)
		if err != nil {
			logger.Fatal("failed to init blob store", zap.Error(err))
		}
		blobs = minioStore
		deps["blob"] = minioStore
	} else {
		logger.Warn("BLOB_ENDPOINT not provided; documents kept in memory")
		blobs = blob.NewMemoryStore(cfg.Blob.PublicBaseURL)
	}

	// A nil interface, not a typed nil, marks email intake as disabled.
	var reader mailbox.Reader
	if cfg.Mailbox.Enabled() {
		tokens := mailbox.NewTokenCache(mailbox.NewClientCredentials(cfg.Mailbox), mailbox.TokenCacheOptions{
			Redis:  redis.Handle(),
			Key:    cfg.Mailbox.TokenCacheKey,
			Logger: logger,
		})
		reader = mailbox.NewClient(cfg.Mailbox.GraphBaseURL, cfg.Mailbox.SharedMailbox, tokens, cfg.Mailbox.Timeout(), logger)
	} else {
		logger.Warn("graph credentials not provided; email intake disabled")
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(logger, cfg.Notification)
	notifier := worker.StartNotificationWorker(dispatcher, notifications.Handlers(), cfg.Notification.Backlog, logger)

	audit := service.NewAuditRecorder(repos.Audit, logger)
	identity := service.NewIdentityService(service.IdentityDependencies{
		ProfileRepo: repos.Profiles,
		Retries:     cfg.Intake.ProfileRetries,
		Logger:      logger,
	})
	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		CaseRepo:   repos.Cases,
		TaskRepo:   repos.Tasks,
		StaffRepo:  repos.Staff,
		Audit:      audit,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TaskRepo:   repos.Tasks,
		StaffRepo:  repos.Staff,
		Audit:      audit,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	intake := service.NewIntakeService(service.IntakeDependencies{
		Identity:     identity,
		Guard:        service.NewIdempotencyGuard(repos.ProcessedMessages, logger),
		Workflow:     workflow,
		Audit:        audit,
		CaseRepo:     repos.Cases,
		DocumentRepo: repos.Documents,
		Mailbox:      reader,
		Blobs:        blobs,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Config:       cfg.Intake,
	})
	cases := service.NewCaseService(service.CaseDependencies{
		CaseRepo:     repos.Cases,
		TaskRepo:     repos.Tasks,
		DocumentRepo: repos.Documents,
		ProfileRepo:  repos.Profiles,
		AuditRepo:    repos.Audit,
		Identity:     identity,
		Audit:        audit,
		Logger:       logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		StaffRepo:    repos.Staff,
		TokenManager: tokenManager,
		Logger:       logger,
	})
	staffService := service.NewStaffService(cfg.Auth, repos.Staff, logger)
	if err := staffService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	var queue handlers.EmailQueue
	var intakePool *worker.IntakePool
	if cfg.Intake.AsyncWebhook {
		intakePool = worker.NewIntakePool(intake, cfg.Intake.Workers, cfg.Intake.QueueSize, logger)
		queue = intakePool
	}

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Intake.MaxAttachmentBytes)*cfg.Intake.MaxAttachments + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService),
		Staff:          handlers.NewStaffHandler(staffService),
		Public:         handlers.NewPublicHandler(intake, cfg.Intake.MaxAttachmentBytes),
		Intake:         handlers.NewIntakeHandler(intake, queue, cfg.Mailbox.ClientState, logger),
		Tasks:          handlers.NewTasksHandler(workflow, assignment),
		Cases:          handlers.NewCasesHandler(cases, intake),
		Profiles:       handlers.NewProfilesHandler(cases),
		AuthMiddleware: auth.NewAuthMiddleware(tokenManager, repos.Staff),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()

	stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if intakePool != nil {
		if err := intakePool.Stop(stopCtx); err != nil {
			logger.Warn("intake queue not drained", zap.Error(err))
		}
	}
	if err := notifier.Stop(stopCtx); err != nil {
		logger.Warn("notification backlog not drained", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
