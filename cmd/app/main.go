package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"restaurant-pos-billing/internal/config"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/infra/db/postgres"
	"restaurant-pos-billing/internal/infra/logging"
	"restaurant-pos-billing/internal/infra/metrics"
	pay "restaurant-pos-billing/internal/infra/payment"
	red "restaurant-pos-billing/internal/infra/redis"
	"restaurant-pos-billing/internal/infra/sched"
	"restaurant-pos-billing/internal/infra/web"
	"restaurant-pos-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := postgres.NewPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := postgres.NewTxManager(pool)
	restaurantRepo := postgres.NewRestaurantRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	subRepo := postgres.NewSubscriptionRepo(pool)
	txnRepo := postgres.NewTransactionRepo(pool)

	// ---- Payment gateways ----
	stripeGW := pay.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret)
	orangeGW := pay.NewOrangeMoneyGateway(
		cfg.Payment.MobileMoney.Orange.MerchantID,
		cfg.Payment.MobileMoney.Orange.ClientID,
		cfg.Payment.MobileMoney.Orange.ClientSecret,
		cfg.Payment.MobileMoney.Orange.BaseURL,
		cfg.Payment.MobileMoney.Orange.Currency,
	)
	airtelGW := pay.NewAirtelMoneyGateway(
		cfg.Payment.MobileMoney.Airtel.ClientID,
		cfg.Payment.MobileMoney.Airtel.ClientSecret,
		cfg.Payment.MobileMoney.Airtel.BaseURL,
		cfg.Payment.MobileMoney.Airtel.Currency,
		cfg.Payment.MobileMoney.Airtel.Country,
	)

	// ---- Use cases ----
	otpMgr := usecase.NewOTPManager(subRepo)
	subUC := usecase.NewSubscriptionUseCase(subRepo, restaurantRepo, otpMgr, tm, cfg.Payment.Currency, logger)
	activationUC := usecase.NewActivationUseCase(subRepo, txnRepo, restaurantRepo, userRepo, tm, logger)
	paymentUC := usecase.NewPaymentUseCase(
		subRepo, txnRepo,
		stripeGW,
		[]adapter.MobileMoneyGateway{orangeGW, airtelGW},
		model.Provider(cfg.Payment.MobileMoney.DefaultProvider),
		otpMgr, activationUC, tm, logger,
	)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Security.JWTSecret, !cfg.Runtime.Dev, "", cfg.Security.SessionTTL)
	srv := web.NewServer(
		subUC, paymentUC, activationUC, stripeGW,
		auth,
		cfg.Security.AdminAPIKey,
		cfg.Payment.MobileMoney.WebhookToken,
		cfg.Server.SuccessURL,
		cfg.Server.CancelURL,
		locker, limiter, logger,
	)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Reconciler ----
	reconciler := sched.NewPaymentReconciler(paymentUC, txnRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	server.Shutdown(context.Background())
}
