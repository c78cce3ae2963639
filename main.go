package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitbook/config"
	"fitbook/cron"
	"fitbook/database"
	availabilityRepoPkg "fitbook/database/repository/availability"
	bookingRepoPkg "fitbook/database/repository/booking"
	paymentRepoPkg "fitbook/database/repository/payment"
	"fitbook/handlers"
	"fitbook/middleware"
	"fitbook/routes"
	"fitbook/services/booking"
	"fitbook/services/calendar"
	"fitbook/services/notification"
	"fitbook/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitLockClient()
	stripe.Key = config.AppConfig.StripeKey

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	availRepo := availabilityRepoPkg.NewMongoAvailabilityRepo()
	bookRepo := bookingRepoPkg.NewMongoBookingRepo()
	payRepo := paymentRepoPkg.NewMongoPaymentRepo()

	ctx, cancelIndexes := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelIndexes()
	for name, ensure := range map[string]func(context.Context) error{
		"availability": availRepo.EnsureIndexes,
		"bookings":     bookRepo.EnsureIndexes,
		"payments":     payRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.Sugar().Fatalf("main: failed to ensure %s indexes: %v", name, err)
		}
	}

	// services.
	notifier := notification.NewDefaultNotificationService(logger)
	resolver := booking.NewAvailabilityResolver(availRepo)
	detector := booking.NewConflictDetector(resolver, bookRepo)
	locker := utils.NewRedisTrainerLock(utils.GetLockClient())
	scheduler := cron.NewTaskScheduler(logger)

	lifecycle := &booking.LifecycleManager{
		Bookings:  bookRepo,
		Payments:  payRepo,
		Processor: booking.NewStripePaymentProcessor(logger),
		Notifier:  notifier,
		Calendar:  scheduler,
		Locker:    locker,
		Detector:  detector,
		Logger:    logger,

		PlatformFeePercent: config.AppConfig.PlatformFeePercent,
		LateCancelCutoff:   config.LateCancelCutoff(),
		LateRefundPercent:  config.AppConfig.LateCancelRefundPercent,
	}

	engine := &booking.DefaultBookingEngine{
		Lifecycle:  lifecycle,
		Detector:   detector,
		Reconciler: booking.NewPaymentReconciler(lifecycle, bookRepo, payRepo, logger),
	}

	syncSvc := calendar.NewSyncService(
		calendar.NewHTTPCalendarClient(),
		bookRepo,
		notifier,
		config.AppConfig.CalendarMaxRetries,
		logger,
	)

	sweep := booking.NewStalenessSweep(lifecycle, bookRepo, locker, config.PendingPaymentTimeout(), logger)
	cron.InitWorker(syncSvc, sweep, logger)

	utils.StartHealthMonitor(utils.GetCacheClient(), utils.GetLockClient(), database.MongoClient)

	// Assemble the handler bundle and register routes.
	handlerBundle := &handlers.HandlerBundle{
		Engine:           engine,
		AvailabilityRepo: availRepo,
		Sync:             syncSvc,
		WebhookSecret:    config.AppConfig.StripeWebhookSecret,
	}
	routes.RegisterBookingRoutes(router, handlerBundle)
	routes.RegisterTrainerRoutes(router, handlerBundle)
	routes.RegisterWebhookRoutes(router, handlerBundle)
	routes.RegisterHealthRoute(router)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
