package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"praxis-website/internal/auth"
	"praxis-website/internal/cache"
	"praxis-website/internal/cleanup"
	"praxis-website/internal/config"
	"praxis-website/internal/contact"
	"praxis-website/internal/content"
	"praxis-website/internal/database"
	"praxis-website/internal/handlers"
	"praxis-website/internal/i18n"
	"praxis-website/internal/locale"
	"praxis-website/internal/logging"
	"praxis-website/internal/metrics"
	"praxis-website/internal/notification"
	"praxis-website/internal/ratelimit"
	"praxis-website/internal/scheduler"
	"praxis-website/internal/search"
	"praxis-website/internal/warmer"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "config/config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", configPath, err)
	}

	logger, err := logging.NewLogger(appConfig.Logging.Level, appConfig.Logging.Format, "praxis-website")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(appConfig, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(appConfig *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	gormDB, err := database.Open(appConfig.Database)
	if err != nil {
		return err
	}
	defer gormDB.Close()
	logger.Info("Database connected", zap.String("type", appConfig.Database.Type))

	if err := gormDB.InitSchema(); err != nil {
		return err
	}
	seeded, err := gormDB.SeedContactReasons(ctx)
	if err != nil {
		return err
	}
	if err := gormDB.VerifyContactReasons(ctx, appConfig.Locales); err != nil {
		return err
	}
	logger.Info("Contact reasons ready", zap.Int("seeded", seeded))

	translator, err := i18n.New(appConfig.Locales[0])
	if err != nil {
		return err
	}
	for _, loc := range appConfig.Locales {
		if missing := translator.MissingKeys(loc); len(missing) > 0 {
			logger.Warn("Catalog is incomplete", zap.String("locale", loc), zap.Strings("missing", missing))
		}
	}
	resolver := locale.NewResolver(appConfig.Locales, appConfig.Locales[0])

	// Redis backed caches
	redisClient := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable, responses will not be cached until it is", zap.Error(err))
	}

	cacheManager := cache.NewManager(cache.NewRedisStore(redisClient, appConfig.Cache.Prefix), cache.Options{
		Enabled:       appConfig.Cache.Enabled,
		Prefix:        appConfig.Cache.Prefix,
		TTL:           appConfig.Cache.ResponseTTL(),
		SessionCookie: appConfig.Cache.SessionCookie,
		Locales:       resolver.Supported(),
		DefaultLocale: resolver.Default(),
	}, logger)
	contentProvider, err := content.NewProvider(
		cache.NewRedisKV(redisClient, appConfig.Cache.Prefix),
		appConfig.Cache.ContentTTL(),
		resolver.Default(),
		logger,
	)
	if err != nil {
		return err
	}

	// Notifications
	dispatcher := notification.NewDispatcher(gormDB, translator,
		appConfig.Mail.StaffTo, appConfig.Notification.StaffLocale, appConfig.Location(), logger)
	worker := notification.NewWorker(gormDB,
		notification.NewMailer(appConfig.Mail, logger),
		notification.NewCircuitBreaker(appConfig.Notification.BreakerThreshold, appConfig.Notification.BreakerReset()),
		dispatcher.Wake(),
		notification.WorkerConfig{
			PollInterval: appConfig.Notification.PollInterval(),
			MaxAttempts:  appConfig.Notification.MaxAttempts,
		}, logger)
	worker.Start(ctx)
	defer worker.Stop()

	// Contact pipeline
	validator := contact.NewValidator(gormDB, translator,
		contact.WithLocation(appConfig.Location()),
		contact.WithMXCheck(appConfig.Validation.CheckMX))
	contactService := contact.NewService(gormDB, gormDB, validator, dispatcher, logger)

	// Initialize Meilisearch using config
	submissionIndex := search.NewSubmissionIndex(
		appConfig.Search.Meilisearch.Host,
		appConfig.Search.Meilisearch.APIKey,
		appConfig.Search.Meilisearch.Index,
	)
	if submissionIndex.Enabled() {
		if err := submissionIndex.InitIndex(); err != nil {
			logger.Warn("Failed to initialize search index", zap.Error(err))
		}
		contactService.SetIndexer(submissionIndex)
	}

	// Initialize rate limiter
	rateLimiter := ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)
	rateLimiter.StartJanitor(10*time.Minute, ctx.Done())

	// Warming and cleanup schedules
	cacheWarmer := warmer.NewWarmer(cacheManager, contentProvider, warmer.Config{
		BaseURL:     appConfig.Server.BaseURL,
		Paths:       appConfig.Warmer.Paths,
		Locales:     resolver.Supported(),
		Lookups:     content.Lookups,
		Timeout:     appConfig.Warmer.GetTimeout(),
		UserAgent:   appConfig.Warmer.UserAgent,
		Concurrency: appConfig.Warmer.Concurrency,
	}, logger)
	appScheduler := scheduler.NewScheduler(cacheWarmer, cleanup.NewService(gormDB.DB(), logger), appConfig, logger)
	if err := appScheduler.Start(); err != nil {
		logger.Warn("Failed to start scheduler", zap.Error(err))
	}
	defer appScheduler.Stop()

	go reportDBStats(ctx, gormDB)

	// HTTP
	gin.SetMode(appConfig.Server.Mode)
	contactHandler := handlers.NewContactHandler(contactService, gormDB, translator, resolver.Default(), logger)
	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:         logger,
		AllowedOrigins: appConfig.Server.AllowedOrigins,
		Resolver:       resolver,
		Translator:     translator,
		Cache:          cacheManager,
		Contact:        contactHandler,
		Pages:          handlers.NewPageHandler(contentProvider, contactHandler, translator, resolver, appConfig.Server.BaseURL, logger),
		Admin: handlers.NewAdminHandler(handlers.AdminDeps{
			DB:        gormDB,
			Contact:   contactService,
			Search:    submissionIndex,
			Cache:     cacheManager,
			Content:   contentProvider,
			Scheduler: appScheduler,
			Queue:     worker,
			Limiter:   rateLimiter,
		}, logger),
		Tokens:   adminTokens(appConfig, logger),
		Limiter:  rateLimiter,
		Database: gormDB,
		Redis:    handlers.RedisPinger(redisClient),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", appConfig.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if appConfig.Warmer.Enabled {
		// warm once the listener accepts requests
		go func() {
			select {
			case <-time.After(2 * time.Second):
				appScheduler.RunWarmNow(ctx, false)
			case <-ctx.Done():
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// adminTokens returns nil when no secret is configured, which disables the
// admin API
func adminTokens(cfg *config.Config, logger *zap.Logger) *auth.Tokens {
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, admin API disabled")
		return nil
	}
	return auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry())
}

func reportDBStats(ctx context.Context, gormDB *database.GormDB) {
	sqlDB, err := gormDB.DB().DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBConnections(sqlDB.Stats())
		case <-ctx.Done():
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
