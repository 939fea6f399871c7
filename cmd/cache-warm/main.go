package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"praxis-website/internal/cache"
	"praxis-website/internal/config"
	"praxis-website/internal/content"
	"praxis-website/internal/logging"
	"praxis-website/internal/warmer"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// Parse command line arguments
	var configPath = flag.String("config", "config/config.yaml", "Path to the YAML configuration")
	var baseURL = flag.String("base-url", "", "Website base URL (default: server.base_url / BASE_URL)")
	var clear = flag.Bool("clear", false, "Clear the response and content caches first")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *baseURL != "" {
		cfg.Server.BaseURL = *baseURL
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, "console", "praxis-cache-warm")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	manager := cache.NewManager(cache.NewRedisStore(client, cfg.Cache.Prefix), cache.Options{
		Enabled:       cfg.Cache.Enabled,
		Prefix:        cfg.Cache.Prefix,
		TTL:           cfg.Cache.ResponseTTL(),
		SessionCookie: cfg.Cache.SessionCookie,
		Locales:       cfg.Locales,
	}, logger)
	provider, err := content.NewProvider(cache.NewRedisKV(client, cfg.Cache.Prefix), cfg.Cache.ContentTTL(), cfg.Locales[0], logger)
	if err != nil {
		logger.Fatal("Failed to load content", zap.Error(err))
	}

	w := warmer.NewWarmer(manager, provider, warmer.Config{
		BaseURL:     cfg.Server.BaseURL,
		Paths:       cfg.Warmer.Paths,
		Locales:     cfg.Locales,
		Lookups:     content.Lookups,
		Timeout:     cfg.Warmer.GetTimeout(),
		UserAgent:   cfg.Warmer.UserAgent,
		Concurrency: cfg.Warmer.Concurrency,
	}, logger)

	report, err := w.WarmAll(ctx, warmer.Options{Clear: *clear})
	if err != nil {
		logger.Fatal("Cache warm failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(report)
	if report.Failed() > 0 {
		os.Exit(2)
	}
}
