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

	"prepvio-subscription/internal/config"
	"prepvio-subscription/internal/domain/ports/adapter"
	notifyAdapters "prepvio-subscription/internal/infra/adapters/notify"
	payAdapters "prepvio-subscription/internal/infra/adapters/payment"
	"prepvio-subscription/internal/infra/api"
	pg "prepvio-subscription/internal/infra/db/postgres"
	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/infra/metrics"
	red "prepvio-subscription/internal/infra/redis"
	"prepvio-subscription/internal/infra/sched"
	"prepvio-subscription/internal/infra/worker"
	"prepvio-subscription/internal/usecase"
)

// set by -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath, dev := config.ParseFlags()
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	checkoutLimiter := red.NewCheckoutLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	promoRepo := pg.NewPromoRepo(pool)
	interviewRepo := pg.NewInterviewRepo(pool)
	notifRepo := pg.NewNotificationRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	switch cfg.Payment.Provider {
	case "noop":
		gateway = payAdapters.NewNoopPaymentGateway(cfg.Payment.KeySecret)
		logger.Warn().Msg("payment gateway: noop")
	default:
		gateway, err = payAdapters.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.WebhookSecret, cfg.Payment.BaseURL)
		if err != nil {
			return fmt.Errorf("razorpay gateway: %w", err)
		}
		logger.Info().Str("key_id", logging.Redact(cfg.Payment.KeyID, cfg.Runtime.Dev)).Msg("payment gateway: razorpay")
	}

	// ---- Notifications ----
	sinks := []adapter.NotificationSink{notifyAdapters.NewStoreSink(notifRepo)}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notifyAdapters.NewTelegramSink(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram sink disabled")
		} else {
			sinks = append(sinks, tg)
		}
	}
	notifyPool := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	notifyPool.Start(context.WithoutCancel(ctx))
	defer notifyPool.Stop()
	notifier := worker.NewDispatcher(notifyPool, logger, sinks...)

	// ---- Use cases ----
	catalog, err := usecase.NewPlanCatalog(cfg.Plans)
	if err != nil {
		return fmt.Errorf("plan catalog: %w", err)
	}
	userUC := usecase.NewUserUseCase(userRepo, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, catalog, logger)
	paymentUC := usecase.NewPaymentUseCase(userRepo, payRepo, promoRepo, txManager, catalog, promoUC, gateway, notifier,
		usecase.LedgerOptions{Currency: cfg.Payment.Currency, OrderTimeout: cfg.Payment.OrderTimeout}, logger)
	subUC := usecase.NewSubscriptionUseCase(userRepo, interviewRepo, txManager, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, payRepo, logger)
	notifUC := usecase.NewNotificationUseCase(notifRepo, logger)

	// ---- HTTP ----
	ipLimiter := api.NewIPRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, cfg.Auth.AdminEmails)
	srv, err := api.NewServer(api.Deps{
		Catalog:       catalog,
		Payments:      paymentUC,
		Subscriptions: subUC,
		Promos:        promoUC,
		Users:         userUC,
		Stats:         statsUC,
		Notifications: notifUC,
	}, auth, ipLimiter, checkoutLimiter, cfg.HTTP, logger)
	if err != nil {
		return err
	}
	httpServer := api.NewHTTPServer(cfg.HTTP, srv.Handler())

	reconciler := sched.NewPaymentReconciler(paymentUC, payRepo, locker,
		cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileAfter, cfg.Scheduler.ReconcileBatch, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Str("version", version).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := reconciler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ipLimiter.Cleanup(gctx)
		return nil
	})
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("bye")
	return err
}
