package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/handlers"
	"github.com/devchat/devchat-service/internal/i18n"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/services/ai"
	"github.com/devchat/devchat-service/internal/services/cache"
	"github.com/devchat/devchat-service/internal/services/chat"
	"github.com/devchat/devchat-service/internal/services/directory"
	"github.com/devchat/devchat-service/internal/services/engine"
	"github.com/devchat/devchat-service/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting DevChat service...")

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize chatbot directory
	dir, err := directory.NewManager(cfg, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize chatbot directory")
	}

	// Initialize cache
	cacheService, err := cache.NewService(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	// Initialize model client and engine registry
	modelClient := ai.NewClient(&cfg.Model, metrics, log)
	engines := engine.NewRegistry(&cfg.Chat, modelClient, metrics, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize pipeline and handlers
	pipeline := chat.NewPipeline(cfg, dir, cacheService, engines, metrics, log)
	chatHandler := handlers.NewChatHandler(pipeline, rateLimiter, localizer, metrics, log)
	chatbotHandler := handlers.NewChatbotHandler(cfg, dir, cacheService, engines, metrics, log)
	sessionHandler := handlers.NewSessionHandler(cfg, dir, cacheService, localizer, metrics, log)

	router := handlers.NewRouter(chatHandler, chatbotHandler, sessionHandler)

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := dir.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("Directory shutdown failed")
	}

	log.Info("DevChat service stopped")
}
