package main

import (
	"os"
	"os/signal"
	"syscall"

	"tasker/internal/app"
	"tasker/internal/config"
	"tasker/internal/database"
	"tasker/pkg/rabbitmq"

	"github.com/sirupsen/logrus"
)

func main() {
	// --- Logger ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// --- Database ---
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Errorf("Error closing database: %v", err)
		}
	}()

	deps := app.Deps{Config: cfg, DB: db, Log: log}

	// --- Task events (optional) ---
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		deps.Publisher = mqClient
	} else {
		log.Info("RABBITMQ_URL not set, task events disabled")
	}

	application := app.New(deps)

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Starting server on %s", cfg.AppPort)
		if err := application.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Info("Shutting down server...")
	if err := application.Fiber.Shutdown(); err != nil {
		log.Errorf("Error during Fiber shutdown: %v", err)
	}
	log.Info("Server gracefully stopped")
}
