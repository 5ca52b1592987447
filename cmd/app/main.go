package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"counselling-payments/internal/config"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/adapters/email"
	payAdapters "counselling-payments/internal/infra/adapters/payment"
	"counselling-payments/internal/infra/adapters/sms"
	"counselling-payments/internal/infra/api"
	fs "counselling-payments/internal/infra/db/firestore"
	pg "counselling-payments/internal/infra/db/postgres"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"
	red "counselling-payments/internal/infra/redis"
	"counselling-payments/internal/infra/sched"
	"counselling-payments/internal/infra/security"
	"counselling-payments/internal/infra/worker"
	"counselling-payments/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = "none"
)

type stores struct {
	users repository.UserRepository
	logs  repository.PaymentLogRepository
	close func()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted PII, noop gateway)")
	flag.Parse()

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Store ----
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("store")
	}
	defer st.close()

	// ---- Redis (optional) ----
	var (
		dedupe  repository.DeliveryDeduper
		cache   repository.OrderCache
		limiter usecase.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		dedupe = red.NewDeliveryDeduper(redisClient, cfg.Redis.DedupTTL)
		cache = red.NewOrderCache(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url empty: delivery dedupe, order cache and rate limiting disabled")
	}

	// ---- Audit payload sealing ----
	var sealer usecase.Sealer
	if key := cfg.Security.AuditEncryptionKey; key != "" {
		s, err := security.NewPayloadSealer(key)
		if err != nil {
			logger.Fatal().Err(err).Msg("audit sealer")
		}
		sealer = s
	}

	// ---- Adapters ----
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	var smsSender adapter.SMSSender
	if cfg.SMS.APIID != "" {
		smsSender = sms.NewBulkSMSClient(cfg.SMS)
	}
	var emailSender adapter.EmailSender
	if cfg.Email.SMTPUser != "" {
		emailSender = email.NewSMTPSender(cfg.Email)
	}

	// ---- Worker pool ----
	// detached from ctx so an early cancel cannot drop queued notifications
	pool := worker.NewPool(cfg.Notify.Workers, logger)
	pool.Start(context.WithoutCancel(ctx))

	// ---- Use cases ----
	locator := usecase.NewOrderLocator(st.users, logger)
	reconcileUC := usecase.NewReconcileUseCase(st.users, locator, cache, usecase.ReconcileOptions{
		MaxAttempts: cfg.Reconcile.MaxAttempts,
		BaseBackoff: cfg.Reconcile.BaseBackoff,
		Defaults: model.PremiumDefaults{
			PlanTitle:  cfg.Premium.DefaultPlanTitle,
			Form:       cfg.Premium.DefaultForm,
			ExpiryDays: cfg.Premium.DefaultExpiryDays,
		},
	}, logger)
	notifyUC := usecase.NewNotificationUseCase(pool, smsSender, emailSender, usecase.NotificationOptions{
		SMSTemplateID: cfg.SMS.TemplateID,
		Timeout:       cfg.Notify.Timeout,
		Dev:           cfg.Runtime.Dev,
	}, logger)
	audit := usecase.NewAuditLog(st.logs, sealer, logger)
	webhookUC := usecase.NewWebhookUseCase(reconcileUC, notifyUC, audit, dedupe, logger)
	orderUC := usecase.NewOrderUseCase(st.users, gateway, reconcileUC, locator, notifyUC, cache, limiter, usecase.OrderOptions{
		KeySecret:       cfg.Payment.Razorpay.KeySecret,
		DefaultCurrency: cfg.Payment.Currency,
		CreateLimit:     cfg.Scheduler.CreateOrderLimit,
		CreateWindow:    cfg.Scheduler.CreateOrderWindow,
	}, logger)
	premiumUC := usecase.NewPremiumUseCase(st.users, reconcileUC, logger)

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, premiumUC, logger)
	go func() { _ = expiry.Run(ctx) }()
	sweeper := sched.NewPaymentReconciler(st.users, gateway, reconcileUC, notifyUC,
		cfg.Scheduler.SweepInterval, cfg.Scheduler.SweepStaleAfter, logger)
	go sweeper.Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(webhookUC, orderUC, premiumUC,
		api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		api.Options{
			WebhookPath:   cfg.HTTP.WebhookPath,
			WebhookSecret: cfg.Payment.Razorpay.WebhookSecret,
			MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
			Timeout:       cfg.HTTP.Timeout,
		}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("webhook_path", cfg.HTTP.WebhookPath).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	shutdown(shutdownCtx, server, pool, cancel, logger)
	logger.Info().Msg("bye")
}

type httpShutdowner interface {
	Shutdown(ctx context.Context) error
}

type stopper interface{ Stop() }

// shutdown stops intake, runs the notifications still queued and only then
// cancels the background loops.
func shutdown(ctx context.Context, server httpShutdowner, pool stopper, cancel context.CancelFunc, logger *zerolog.Logger) {
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	pool.Stop()
	cancel()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case "postgres":
		dbPool, err := pg.NewPool(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, err
		}
		go pg.ReportPoolStats(ctx, dbPool, 15*time.Second, logger)
		return &stores{
			users: pg.NewUserRepo(dbPool),
			logs:  pg.NewPaymentLogRepo(dbPool),
			close: dbPool.Close,
		}, nil
	case "firestore":
		client, err := fs.NewClient(ctx, cfg.Store.Firestore)
		if err != nil {
			return nil, err
		}
		return &stores{
			users: fs.NewUserRepo(client, cfg.Store.Firestore.UsersCollection),
			logs:  fs.NewPaymentLogRepo(client, cfg.Store.Firestore.LogsCollection),
			close: func() { _ = client.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	rp := cfg.Payment.Razorpay
	if rp.KeyID == "" || rp.KeySecret == "" {
		if !cfg.Runtime.Dev {
			return nil, errors.New("payment.razorpay.key_id and key_secret are required outside dev mode")
		}
		logger.Warn().Msg("razorpay keys missing: using noop gateway")
		return payAdapters.NewNoopPaymentGateway(), nil
	}
	return payAdapters.NewRazorpayGateway(rp.KeyID, rp.KeySecret, rp.BaseURL, rp.Timeout)
}
