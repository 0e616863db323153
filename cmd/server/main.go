package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/verdandi/internal"
	"github.com/dukerupert/verdandi/internal/billing"
	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/email"
	"github.com/dukerupert/verdandi/internal/events"
	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/handler/admin"
	"github.com/dukerupert/verdandi/internal/handler/webhook"
	"github.com/dukerupert/verdandi/internal/invoice"
	"github.com/dukerupert/verdandi/internal/jobs"
	"github.com/dukerupert/verdandi/internal/lock"
	"github.com/dukerupert/verdandi/internal/middleware"
	"github.com/dukerupert/verdandi/internal/postgres"
	"github.com/dukerupert/verdandi/internal/router"
	"github.com/dukerupert/verdandi/internal/routes"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/dukerupert/verdandi/internal/settings"
	"github.com/dukerupert/verdandi/internal/storage"
	"github.com/dukerupert/verdandi/internal/telemetry"
	"github.com/dukerupert/verdandi/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "verdandi"
	shutdownTimeout  = 30 * time.Second
	// finished jobs older than this are purged by the daily cleanup job
	jobRetentionDays = 14
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	telemetry.InitBusinessMetrics(metricsNamespace)

	storeSettings, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("settings load failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.MigrateDatabase(cfg.DatabaseUrl); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	db, err := postgres.Open(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	health := handler.NewHealthHandler(2 * time.Second)
	health.Register("database", func(ctx context.Context) error { return db.Pool().Ping(ctx) })

	// Payment gateways. Methods without a gateway are handled offline only.
	gateways := billing.NewGateways()
	if cfg.StripeEnabled() {
		stripeGateway, err := billing.NewStripeGateway(billing.StripeConfig{
			APIKey:                cfg.Stripe.SecretKey,
			WebhookSecret:         cfg.Stripe.WebhookSecret,
			PaymentMethod:         cfg.Stripe.PaymentMethod,
			DisablePartialRefunds: cfg.Stripe.DisablePartialRefunds,
			MaxRetries:            cfg.Stripe.MaxRetries,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe gateway: %w", err)
		}
		gateways.Register(cfg.Stripe.PaymentMethod, stripeGateway)
	}
	logger.Info("Payment gateways registered", "methods", gateways.Methods())

	// Events: in-process dispatcher, plus NATS when configured.
	dispatcher := events.NewDispatcher()
	dispatcher.Subscribe("*", events.LogEvents(logger))
	publisher := events.Multi{dispatcher}
	if cfg.NATS.URL != "" {
		natsCfg := events.NATSConfig{URL: cfg.NATS.URL, SubjectPrefix: cfg.NATS.SubjectPrefix, FlushTimeout: time.Second}
		nc, err := events.Connect(natsCfg, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = append(publisher, events.NewNATSPublisher(nc, natsCfg))
		health.Register("nats", func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats %s", nc.Status())
			}
			return nil
		})
	}

	// Order lock: Redis across instances, in-process otherwise.
	var locker domain.OrderLocker
	lockOpts := lock.Options{TTL: cfg.Redis.LockTTL}
	if cfg.Redis.URL != "" {
		client, err := lock.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		redisLocker := lock.NewRedisLocker(client, "", lockOpts, logger)
		health.Register("redis", redisLocker.Ping)
		locker = redisLocker
	} else {
		locker = lock.NewMemoryLocker(lockOpts)
	}

	// Invoice documents
	fileStore, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	invoices := invoice.NewGenerator(fileStore, cfg.StoreName, logger)

	// Notifications are queued and delivered by the worker.
	jobQueue := postgres.NewJobQueue(db)
	customers := postgres.NewCustomerRepository(db)
	emailService, err := email.NewService(email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		Timeout:  10 * time.Second,
	}, logger), cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}

	deps := service.Dependencies{
		Orders:          postgres.NewOrderRepository(db),
		Transactions:    postgres.NewPaymentTransactionRepository(db),
		Shipments:       postgres.NewShipmentRepository(db),
		Loyalty:         postgres.NewLoyaltyPointsRepository(db),
		GiftVouchers:    postgres.NewGiftVoucherRepository(db),
		Customers:       customers,
		Currencies:      postgres.NewCurrencyService(db),
		Gateway:         gateways,
		Inventory:       postgres.NewInventoryService(db),
		Reservations:    postgres.NewReservationService(db),
		Auctions:        postgres.NewAuctionService(db),
		Discounts:       postgres.NewDiscountService(db),
		Notifier:        jobs.NewNotifier(jobQueue, customers, cfg.StoreName),
		Events:          publisher,
		Invoices:        invoices,
		Locker:          locker,
		Tx:              db,
		OrderSettings:   storeSettings.Order,
		LoyaltySettings: storeSettings.Loyalty,
		Logger:          logger,
	}

	orderService, err := service.NewOrderService(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize order service: %w", err)
	}
	paymentService, err := service.NewPaymentTransactionService(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize payment transaction service: %w", err)
	}
	fulfillmentService, err := service.NewFulfillmentService(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize fulfillment service: %w", err)
	}
	loyaltyService, err := service.NewLoyaltyService(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize loyalty service: %w", err)
	}

	// Background worker
	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		w := worker.NewWorker(jobQueue, emailService, worker.Config{
			PollInterval:    cfg.Worker.PollInterval,
			MaxConcurrency:  cfg.Worker.MaxConcurrency,
			Queue:           cfg.Worker.Queue,
			ShutdownTimeout: shutdownTimeout,
		}, logger)
		go func() {
			defer close(workerDone)
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "error", err)
			}
		}()
		go scheduleCleanup(ctx, jobQueue, logger)
	} else {
		close(workerDone)
	}

	// HTTP
	httpMetrics := middleware.NewMetrics(metricsNamespace, prometheus.DefaultRegisterer)
	r := router.New(
		middleware.RequestID,
		middleware.WithClientIP(),
		router.Logger(logger),
		router.Recovery(logger, capturePanic),
		telemetry.SentryMiddleware(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		middleware.WithRequestLogger(logger),
	)

	if cfg.Storage.Provider == "local" || cfg.Storage.Provider == "" {
		r.Static(cfg.Storage.LocalURL, cfg.Storage.LocalPath)
	}

	adminLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer adminLimiter.Stop()

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		HealthHandler:  health,
		MetricsHandler: httpMetrics.Handler(),
	})
	routes.RegisterAdminRoutes(r.Group(adminLimiter.Middleware), routes.AdminDeps{
		Token:                     cfg.AdminToken,
		OrderHandler:              admin.NewOrderHandler(orderService, paymentService, fulfillmentService),
		PaymentTransactionHandler: admin.NewPaymentTransactionHandler(paymentService),
		ShipmentHandler:           admin.NewShipmentHandler(fulfillmentService),
		LoyaltyHandler:            admin.NewLoyaltyHandler(loyaltyService),
	})
	webhookDeps := routes.WebhookDeps{}
	if cfg.StripeEnabled() {
		webhookDeps.StripeHandler = webhook.NewStripeHandler(paymentService, cfg.Stripe.WebhookSecret, logger)
	}
	routes.RegisterWebhookRoutes(r, webhookDeps)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.NotFoundResponse(w, req)
	})

	logger.Debug("routes registered", "count", len(r.Routes()), "routes", r.Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env, "admin_auth", cfg.AdminToken != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	stop()
	<-workerDone
	return nil
}

// capturePanic forwards recovered panics to Sentry.
func capturePanic(r *http.Request, v any) {
	telemetry.CaptureError(r.Context(), fmt.Errorf("panic: %v", v),
		map[string]string{"path": r.URL.Path, "method": r.Method},
		map[string]interface{}{"request_id": middleware.GetRequestID(r.Context())})
}

// scheduleCleanup enqueues the finished-jobs purge once a day.
func scheduleCleanup(ctx context.Context, q jobs.Enqueuer, logger *slog.Logger) {
	enqueue := func() {
		if err := jobs.EnqueueCleanupFinishedJobs(ctx, q, jobRetentionDays); err != nil && ctx.Err() == nil {
			logger.Warn("failed to enqueue job cleanup", "error", err)
		}
	}
	enqueue()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
