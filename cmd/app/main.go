// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription-payments/internal/config"
	"subscription-payments/internal/domain/ports/adapter"
	notifyAdapters "subscription-payments/internal/infra/adapters/notify"
	payAdapters "subscription-payments/internal/infra/adapters/payment"
	pg "subscription-payments/internal/infra/db/postgres"
	"subscription-payments/internal/infra/metrics"
	red "subscription-payments/internal/infra/redis"
	"subscription-payments/internal/infra/sched"
	"subscription-payments/internal/infra/scheduler"
	"subscription-payments/internal/infra/web"
	"subscription-payments/internal/logging"
	"subscription-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop gateway fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	throttle := red.NewThrottle(redisClient)

	// ---- Repositories ----
	orderRepo := pg.NewOrderRepo(pool)
	txRepo := pg.NewTransactionRepo(pool)
	eventRepo := pg.NewEventRepo(pool)
	couponRepo := pg.NewCouponRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	entRepo := pg.NewEntitlementRepo(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	pp := cfg.Payment.PhonePe
	if pp.MerchantID == "" && pp.SaltKey == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("no gateway credentials; using in-memory noop gateway")
		gateway = payAdapters.NewNoopGateway()
	} else {
		gateway, err = payAdapters.NewPhonePeGateway(pp.MerchantID, pp.SaltKey, pp.SaltIndex, pp.RedirectURL, pp.WebhookUsername, pp.WebhookPassword, pp.Sandbox)
		if err != nil {
			logger.Fatal().Err(err).Msg("phonepe gateway")
		}
	}

	notifier := notifyAdapters.NewLogNotifier(logger)

	// ---- Use cases ----
	txm := pg.NewTxManager(pool)
	couponUC := usecase.NewCouponUseCase(couponRepo, logger)
	activationUC := usecase.NewActivationUseCase(planRepo, subRepo, entRepo, txm, locker, usecase.ActivationPolicy{
		Stacking:            *cfg.Checkout.Stacking,
		LifetimeDaysCeiling: cfg.Checkout.LifetimeDaysCeiling,
	}, logger)
	checkoutUC := usecase.NewCheckoutUseCase(orderRepo, planRepo, subRepo, couponUC, gateway, usecase.CheckoutPolicy{
		RenewalWindowDays:   cfg.Checkout.RenewalWindowDays,
		OrderTTL:            cfg.Checkout.OrderTTL,
		LifetimeDaysCeiling: cfg.Checkout.LifetimeDaysCeiling,
	}, logger)
	reconcileUC := usecase.NewReconcileUseCase(orderRepo, txRepo, subRepo, couponRepo, couponUC, activationUC, gateway, notifier, logger)
	refundUC := usecase.NewRefundUseCase(orderRepo, eventRepo, gateway, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, cfg.Server.JWTTTL)
	srv := web.NewServer(checkoutUC, reconcileUC, refundUC, orderRepo, eventRepo, gateway, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Poll reconciler ----
	poller := sched.NewPollReconciler(reconcileUC, orderRepo, throttle, cfg.Poll.Interval, cfg.Poll.BatchSize, cfg.Poll.MinAge, logger)
	loop := scheduler.New(cfg.Poll.Interval, poller, logger)
	loop.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	loop.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
