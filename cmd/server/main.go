package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/padalahq/padala/internal/audit"
	"github.com/padalahq/padala/internal/campaign"
	"github.com/padalahq/padala/internal/classify"
	"github.com/padalahq/padala/internal/config"
	"github.com/padalahq/padala/internal/generate"
	"github.com/padalahq/padala/internal/llm"
	"github.com/padalahq/padala/internal/logging"
	"github.com/padalahq/padala/internal/server"
	"github.com/padalahq/padala/internal/sms"
	"github.com/padalahq/padala/internal/tools"
	"github.com/padalahq/padala/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	settings := llm.Settings{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	}
	generatorLLM, err := llm.New(settings)
	if err != nil {
		logger.Error("Failed to build LLM client", "error", err.Error())
		os.Exit(1)
	}
	checkSettings := settings
	checkSettings.Model = llm.ModerationModel(cfg.LLMProvider)
	checkerLLM, err := llm.New(checkSettings)
	if err != nil {
		logger.Error("Failed to build moderation LLM client", "error", err.Error())
		os.Exit(1)
	}

	var streamPub *audit.StreamPublisher
	if cfg.RedisURL != "" {
		streamPub, err = audit.NewStreamPublisher(cfg.RedisURL)
		if err != nil {
			logger.Warn("Audit stream disabled", "error", err.Error())
			streamPub = nil
		}
	}
	recorder := audit.NewLog(logger, streamPub)

	generator, err := generate.NewClient(generatorLLM, checkerLLM, recorder, logger)
	if err != nil {
		logger.Error("Failed to build generation client", "error", err.Error())
		os.Exit(1)
	}
	classifier, err := classify.NewClient(checkerLLM, logger)
	if err != nil {
		logger.Error("Failed to build classification client", "error", err.Error())
		os.Exit(1)
	}
	sender := sms.NewClient(cfg.SemaphoreAPIKey, cfg.SMSTestMode, logger)
	if sender.Sandbox() {
		logger.Info("SMS sandbox mode active, no real messages will be sent")
	}

	store := campaign.NewStore(campaign.Deps{
		Generator:      generator,
		Classifier:     classifier,
		Sender:         sender,
		Logger:         logger,
		Debounce:       cfg.ReclassifyDebounce(),
		BannerLifetime: cfg.ErrorBannerLifetime(),
	}, cfg.SessionTTL())
	store.StartJanitor(time.Minute)
	defer store.Stop()

	var toolQueue tools.Queue
	var stopWorker func()
	if cfg.RedisURL != "" {
		queue, err := worker.NewQueue(cfg.RedisURL)
		if err != nil {
			logger.Warn("Bulk dispatch queue disabled", "error", err.Error())
		} else {
			defer queue.Close()
			toolQueue = queue
			stopWorker, err = worker.Start(cfg.RedisURL, sender, logger)
			if err != nil {
				logger.Error("Failed to start dispatch worker", "error", err.Error())
				os.Exit(1)
			}
		}
	}

	registry, err := tools.NewRegistry(generator, classifier, sender, toolQueue, logger)
	if err != nil {
		logger.Error("Failed to build tool registry", "error", err.Error())
		os.Exit(1)
	}

	srv := server.New(cfg.Env, logger, generator, classifier, sender, store, registry)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Routes(),
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	if stopWorker != nil {
		stopWorker()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err.Error())
	}
	if streamPub != nil {
		_ = streamPub.Close()
	}
}
