package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/playlens/pulse/internal/classifier"
	"github.com/playlens/pulse/internal/digest"
	"github.com/playlens/pulse/internal/engine"
	"github.com/playlens/pulse/internal/httpserver"
	"github.com/playlens/pulse/internal/notify"
	"github.com/playlens/pulse/internal/storage"
	"github.com/playlens/pulse/internal/weights"
	"github.com/playlens/pulse/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize classifier
	clf := classifier.NewGPTClassifier(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)

	// Initialize subscribers
	subscribers := notify.Fanout{&notify.LogNotifier{Logger: logger}}
	if cfg.Notify.WebhookURL != "" {
		subscribers = append(subscribers, notify.NewWebhookNotifier(
			cfg.Notify.WebhookURL,
			time.Duration(cfg.Notify.WebhookTimeoutSeconds)*time.Second,
			logger,
		))
	}

	policy := weights.Policy{
		DecayFactor: cfg.Engine.DecayFactor,
		BoostFactor: cfg.Engine.BoostFactor,
		Mode:        weights.DecayMode(cfg.Engine.DecayMode),
	}

	clock := engine.SystemClock{}
	eng := engine.New(store, clf, subscribers, policy, clock, logger, engine.Options{
		ClassifyTimeout: time.Duration(cfg.Engine.ClassifyTimeoutSeconds) * time.Second,
		ClassifyRetries: cfg.Engine.ClassifyRetries,
		ClassifyBackoff: time.Duration(cfg.Engine.ClassifyBackoffMillis) * time.Millisecond,
	})

	dig := &digest.Generator{
		Questions: store,
		Weights:   store,
		Policy:    policy,
		Clock:     clock,
	}

	handler := httpserver.NewRouter(eng, dig, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
