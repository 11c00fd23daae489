// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"laundry-billing/internal/config"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/adapter"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/infra/adapters/email"
	"laundry-billing/internal/infra/api"
	pg "laundry-billing/internal/infra/db/postgres"
	"laundry-billing/internal/infra/i18n"
	"laundry-billing/internal/infra/logging"
	"laundry-billing/internal/infra/metrics"
	red "laundry-billing/internal/infra/redis"
	"laundry-billing/internal/infra/sched"
	"laundry-billing/internal/usecase"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("billing service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Repositories ----
	var planRepo repository.PlanRepository = pg.NewPostgresPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	notifRepo := pg.NewNotificationLogRepo(pool)
	dirRepo := pg.NewDirectoryRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		locker      adapter.Locker
		limiter     api.TriggerLimiter
		redisClient *red.Client
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, redisClient, cfg.Redis.TTL, logger)
	} else {
		logger.Warn().Msg("redis.url not set: billing runs are not serialised across replicas and plans are not cached")
	}

	// ---- Email ----
	mailer, err := email.New(&cfg.Email, cfg.Runtime.Dev, logger)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	catalog, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Email.Locale)
	if err != nil {
		return fmt.Errorf("message catalog: %w", err)
	}
	composer, err := usecase.NewMessageComposer(cfg.Email.PortalURL, catalog)
	if err != nil {
		return fmt.Errorf("message templates: %w", err)
	}
	logger.Info().Str("provider", mailer.Name()).Str("locale", catalog.Lang()).Msg("mailer ready")

	// ---- Use cases ----
	notifUC := usecase.NewNotificationUseCase(notifRepo, dirRepo, mailer, composer, logger).WithDevLogging(cfg.Runtime.Dev)
	billingUC := usecase.NewBillingUseCase(subRepo, planRepo, notifUC, locker, usecase.BillingOptions{
		PageSize:    cfg.Billing.PageSize,
		LockTTL:     cfg.Billing.RunLock,
		LapseActive: cfg.Billing.LapseActive(),
		ReminderPolicy: model.ReminderPolicy{
			TrialDays:         cfg.Billing.TrialReminderDays,
			PastDueWindowDays: cfg.Billing.PastDueReminderWindow,
		},
	}, logger)
	paymentUC := usecase.NewPaymentUseCase(payRepo, subRepo, planRepo, txm, cfg.Billing.DefaultCurrency, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, logger)

	// ---- HTTP ----
	srv := api.NewServer(billingUC, paymentUC, subUC,
		api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Scheduler.Secret),
		limiter,
		api.Options{
			RequestTimeout:  cfg.HTTP.RequestTimeout,
			RunTimeout:      cfg.Scheduler.RunTimeout,
			RunTriggerLimit: cfg.HTTP.RunTriggerLimit,
		},
		logger,
	).WithHealthCheck("postgres", pool.Ping)
	if redisClient != nil {
		srv.WithHealthCheck("redis", redisClient.Ping)
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(sched.NewStatusGaugeWorker(cfg.Scheduler.GaugeInterval, subUC, logger).Run(gctx))
	})
	if cfg.Scheduler.Enabled {
		worker := sched.NewBillingWorker(cfg.Scheduler.BillingInterval, cfg.Scheduler.RunTimeout, cfg.Scheduler.RunOnStart, billingUC, logger)
		g.Go(func() error { return ignoreCanceled(worker.Run(gctx)) })
	} else {
		logger.Info().Msg("in-process scheduler disabled; runs come from POST /api/v1/billing/run")
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
