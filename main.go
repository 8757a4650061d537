package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawbook/config"
	"pawbook/cron"
	"pawbook/database"
	bookingRepo "pawbook/database/repository/booking"
	caregiverRepo "pawbook/database/repository/caregiver"
	ownerRepo "pawbook/database/repository/owner"
	petRepo "pawbook/database/repository/pet"
	"pawbook/handlers"
	"pawbook/models"
	"pawbook/routes"
	"pawbook/services/booking"
	"pawbook/services/matching"
	"pawbook/services/notification"
	"pawbook/services/payment"
	"pawbook/services/tasks"
	"pawbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	database.InitDB()
	utils.InitCache()
	utils.FirebaseInit()
	stripe.Key = cfg.StripeKey

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()
	clock := utils.NewSystemClock()

	// repositories.
	bookings := bookingRepo.NewMongoBookingRepo()
	caregivers := caregiverRepo.NewMongoCaregiverRepo()
	pets := petRepo.NewMongoPetRepo()
	owners := ownerRepo.NewMongoOwnerRepo()

	notificationService, err := notification.NewDefaultNotificationService(owners, utils.FCMClient, logger)
	if err != nil {
		logger.Fatal("main: notification service", zap.Error(err))
	}

	// matching.
	queueClient := asynq.NewClient(cron.QueueRedisOpt())
	defer queueClient.Close()
	gateway := matching.NewGateway(
		bookings,
		matching.NewRedisStatusBus(utils.GetCacheClient(), logger),
		tasks.NewScheduler(queueClient),
		caregivers,
		notificationService,
		cfg.MatchingWindow,
		clock,
		logger,
	)

	// payment.
	stripeClient := payment.NewStripeClient()
	sheetResults := payment.NewSheetResults()
	providers := payment.Registry{
		models.PlatformMobile: payment.NewMobileSheetProvider(notificationService, stripeClient, sheetResults, cfg.PaymentSheetTimeout, logger),
		models.PlatformWeb:    payment.NewCardElementProvider(stripeClient, logger),
	}
	intents := payment.NewStripeIntentBackend(stripeClient, owners, cfg.StripeEphemeralKeyVersion, logger)
	captureService := payment.NewCaptureService(intents, providers, gateway, clock, logger)
	billing := payment.NewOwnerBilling(owners)

	// booking workflow.
	watcher := booking.NewStatusWatcher(gateway, captureService, billing, notificationService, logger)
	if _, err := watcher.Resume(rootCtx, bookings); err != nil {
		logger.Error("main: failed to resume booking watchers", zap.Error(err))
	}
	submitter := booking.NewSubmissionService(gateway, cfg.PaymentCurrency, clock, logger)
	sessions := booking.NewSessionManager(
		booking.NewRedisWizardStore(utils.GetCacheClient()),
		submitter,
		watcher,
		gateway,
		pets,
		caregivers,
		cfg.WizardSessionTTL,
		clock,
		logger,
	)

	worker := cron.InitMatchingWorker(gateway, logger)
	utils.StartHealthMonitor(rootCtx, time.Minute, map[string]*redis.Client{"cache": utils.GetCacheClient()}, database.MongoClient)

	handlerBundle := &handlers.HandlerBundle{
		Wizard:    handlers.NewWizardHandler(sessions, logger),
		Bookings:  handlers.NewBookingHandler(gateway, captureService, billing, sheetResults, logger),
		Caregiver: handlers.NewCaregiverHandler(gateway, caregivers, logger),
		Owner:     handlers.NewOwnerHandler(owners, logger),
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	routes.RegisterRoutes(router, handlerBundle, cfg.MaxRequestsPerMin)

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
	worker.Shutdown()
	watcher.Stop(ctx)
	stopRoot()
	if err := database.Disconnect(ctx); err != nil {
		logger.Sugar().Warnf("main: mongo disconnect: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
