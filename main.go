package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"creatorhub/config"
	"creatorhub/cron"
	"creatorhub/database"
	availabilityRepo "creatorhub/database/repository/availability"
	bookingRepo "creatorhub/database/repository/booking"
	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/handlers"
	"creatorhub/routes"
	"creatorhub/services/availability"
	"creatorhub/services/calendarsync"
	"creatorhub/services/tasks"
	"creatorhub/utils"
)

func main() {
	config.LoadConfig()
	utils.InitializeLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		logger.Fatal("main: invalid configuration", zap.Error(err))
	}

	database.InitDB()
	utils.InitRedis()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// repositories.
	rules := availabilityRepo.NewMongoRuleRepo()
	bookings := bookingRepo.NewMongoBookingRepo()
	connections := calendarLinkRepo.NewMongoConnectionRepo()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	for name, repo := range map[string]interface {
		EnsureIndexes(context.Context) error
	}{"rules": rules, "bookings": bookings, "connections": connections} {
		if err := repo.EnsureIndexes(indexCtx); err != nil {
			logger.Fatal("main: failed to ensure indexes", zap.String("repo", name), zap.Error(err))
		}
	}
	cancelIndexes()

	// calendar providers.
	registry := calendarsync.NewRegistry(logger.Named("calendarsync"))
	if config.AppConfig.GoogleEnabled {
		registry.Register(calendarsync.NewGoogleProvider(connections,
			config.AppConfig.GoogleClientID, config.AppConfig.GoogleClientSecret, logger.Named("google")))
	}
	if config.AppConfig.CalDAVEnabled {
		registry.Register(calendarsync.NewCalDAVProvider(connections, nil, logger.Named("caldav")))
	}

	queueClient := asynq.NewClient(utils.QueueRedisOpt())
	enqueuer := tasks.NewEnqueuer(queueClient, config.AppConfig.MirrorMaxRetry)
	defer enqueuer.Close()

	// services.
	availabilityService := &availability.DefaultAvailabilityService{
		Rules:       rules,
		Bookings:    bookings,
		Connections: connections,
		Calendars:   registry,
		Locker:      utils.NewRedisLocker(utils.GetLockClient()),
		Tasks:       enqueuer,
		Clock:       utils.RealClock{},
		Logger:      logger.Named("availability"),
		Config: availability.Config{
			ProviderTimeout: config.AppConfig.ProviderTimeout,
			ClaimStrategy:   config.AppConfig.ClaimStrategy,
			HoldTTL:         config.AppConfig.HoldTTL,
			LockTTL:         config.AppConfig.ClaimLockTTL,
			LockWait:        config.AppConfig.ClaimLockWait,
		},
	}

	worker := cron.InitWorker(availabilityService)

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	utils.StartHealthMonitor(healthCtx, utils.RedisClients(), database.MongoClient)

	revocations := utils.NewRedisRevocationStore(utils.GetAuthCacheClient())
	handlerBundle := handlers.NewHandlerBundle(availabilityService, revocations)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	routes.RegisterRoutes(router, handlerBundle, logger, config.AppConfig.MaxRequestsPerMin)

	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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
	if err := database.Disconnect(ctx); err != nil {
		logger.Sugar().Warnf("main: mongo disconnect: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
