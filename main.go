package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgerpay/config"
	"ledgerpay/cron"
	"ledgerpay/database"
	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/handlers"
	"ledgerpay/routes"
	"ledgerpay/services/gateway"
	"ledgerpay/services/notification"
	"ledgerpay/services/paylink"
	"ledgerpay/services/payment"
	"ledgerpay/services/reconcile"
	"ledgerpay/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	// Money goes over the wire as JSON numbers in major units.
	decimal.MarshalJSONWithoutQuotes = true

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("main: JWT_SECRET must be set")
	}

	var redisClients []*redis.Client
	var mongoClient *mongo.Client

	// repositories.
	var repo ledgerRepo.LedgerRepository
	switch cfg.LedgerBackend {
	case "memory":
		logger.Warn("main: using in-memory ledger; data is lost on restart")
		repo = ledgerRepo.NewMemoryLedgerRepo()
	default:
		database.InitDB()
		mongoClient = database.MongoClient
		repo = ledgerRepo.NewMongoLedgerRepo(database.Database())
	}

	var locker reconcile.Locker
	switch cfg.LockBackend {
	case "redis":
		lockClient := utils.GetLockClient()
		redisClients = append(redisClients, lockClient)
		locker = reconcile.NewRedisLocker(lockClient, cfg.LockTTL)
	default:
		locker = reconcile.NewMemoryLocker()
	}

	var tokenStore paylink.TokenStore
	switch cfg.TokenBackend {
	case "redis":
		tokenClient := utils.GetTokenClient()
		redisClients = append(redisClients, tokenClient)
		tokenStore = paylink.NewRedisTokenStore(tokenClient)
	default:
		tokenStore = paylink.NewMemoryTokenStore()
	}

	var gw gateway.Client
	switch cfg.GatewayProvider {
	case "stripe":
		gw = gateway.NewStripeClient(cfg.StripeKey, nil)
	default:
		gw = gateway.NewOrdersClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)
	}
	logger.Info("main: payment gateway configured", zap.String("gateway", gw.Name()))

	// notifications.
	var sender notification.Sender = notification.NoopSender{Logger: logger}
	var worker *asynq.Server
	var queueClient *asynq.Client
	if cfg.NotifyBackend == "queue" {
		var delivery notification.Sender = notification.NoopSender{Logger: logger}
		if cfg.FirebaseCredentialsFile != "" {
			fcm, err := notification.NewFCMClient(context.Background(), cfg.FirebaseCredentialsFile)
			if err != nil {
				logger.Fatal("main: failed to initialize firebase messaging", zap.Error(err))
			}
			delivery = notification.NewFCMSender(fcm, cfg.NotifyFCMTopic)
		}
		worker = cron.InitNotificationWorker(delivery, logger)
		queueClient = asynq.NewClient(cron.QueueRedisOpt())
		sender = notification.NewQueueSender(queueClient)
	}
	notifier := notification.NewNotifier(sender, logger, cfg.NotifyTimeout)

	// services.
	applier := reconcile.NewApplier(repo, locker, logger, cfg.ReconcileMaxRetries)
	paymentService := payment.NewPaymentService(repo, applier, gw, notifier, logger, payment.Options{
		APISecret:       cfg.GatewayKeySecret,
		WebhookSecret:   cfg.GatewayWebhookSecret,
		GatewayTimeout:  cfg.GatewayTimeout,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	paylinkService := paylink.NewPaylinkService(
		cfg.PaymentLinkSecret,
		cfg.PaymentLinkTTL,
		cfg.PaymentLinkBaseURL,
		tokenStore,
		repo,
		paymentService,
		logger,
	)

	// Assemble the handler bundle.
	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewPaymentHandler(paymentService, cfg.GatewaySignatureHeader),
		handlers.NewPaylinkHandler(paylinkService),
		[]byte(cfg.JWTSecret),
		cfg.MaxRequestsPerMin,
	)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	routes.RegisterRoutes(router, handlerBundle, logger)

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	utils.StartHealthMonitor(healthCtx, redisClients, mongoClient)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}

	if worker != nil {
		worker.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Warn("main: failed to close queue client", zap.Error(err))
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Warn("main: failed to disconnect from MongoDB", zap.Error(err))
		}
	}
	for _, client := range redisClients {
		_ = client.Close()
	}

	logger.Sugar().Info("main: server stopped gracefully")
	_ = logger.Sync()
}
