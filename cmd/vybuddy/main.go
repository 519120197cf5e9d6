package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/agents"
	"github.com/vygeek/vybuddy/internal/bridge"
	"github.com/vygeek/vybuddy/internal/config"
	"github.com/vygeek/vybuddy/internal/escalation"
	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/httpapi"
	"github.com/vygeek/vybuddy/internal/knowledge"
	"github.com/vygeek/vybuddy/internal/llm"
	"github.com/vygeek/vybuddy/internal/observability"
	"github.com/vygeek/vybuddy/internal/orchestrator"
	"github.com/vygeek/vybuddy/internal/records"
	"github.com/vygeek/vybuddy/internal/router"
	"github.com/vygeek/vybuddy/internal/stream"
	"github.com/vygeek/vybuddy/internal/tickets"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	historyStore, err := history.NewStore(ctx, history.RedisConfig{
		URL:        cfg.RedisURL,
		Password:   cfg.RedisPassword,
		MaxEntries: cfg.HistoryMaxEntries,
		HistoryTTL: cfg.HistoryTTL,
	}, logger)
	if err != nil {
		logger.Fatalf("history store init failed: %v", err)
	}
	defer historyStore.Close()

	recordsStore, err := records.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("records store init failed: %v", err)
	}
	defer recordsStore.Close()

	client, err := llm.NewClient(llm.Config{
		Mode:       cfg.LLMAdapterMode,
		GatewayURL: cfg.LLMGatewayURL,
		Timeout:    cfg.LLMTimeout,
	})
	if err != nil {
		logger.Fatalf("llm client init failed: %v", err)
	}

	supportBridge, err := bridge.New(bridge.Config{
		Mode:          cfg.BridgeMode,
		SlackBotToken: cfg.SlackBotToken,
		DiscordToken:  cfg.DiscordBotToken,
	}, logger)
	if err != nil {
		logger.Fatalf("bridge init failed: %v", err)
	}
	if c, ok := supportBridge.(interface{ Close() error }); ok {
		defer c.Close()
	}

	supportChannel := cfg.SlackSupportChannel
	if supportChannel == "" {
		supportChannel = cfg.DiscordSupportChannel
	}

	hub := stream.NewHub(logger, metrics)
	deliverer := stream.NewDeliverer(cfg.StreamFragmentSize, cfg.StreamFragmentDelay, logger, metrics)
	esc := escalation.NewService(supportBridge, historyStore, recordsStore, hub,
		supportChannel, cfg.EscalationTTL, logger, metrics)

	agentSet := agents.All(agents.Deps{
		Client:   client,
		Searcher: knowledge.NewSearcher(cfg.KnowledgeBaseURL),
		TopK:     cfg.KnowledgeTopK,
		Logger:   logger,
	})
	rt := router.New(client, logger)
	validator := tickets.NewValidator(client, logger)
	creator := tickets.NewCreator(tickets.CreatorConfig{
		URL:      cfg.OdooURL,
		Database: cfg.OdooDatabase,
		Username: cfg.OdooUsername,
		Password: cfg.OdooPassword,
	}, logger)

	pipeline := orchestrator.NewPipeline(agentSet, validator, creator, recordsStore, logger, metrics)
	orch := orchestrator.New(rt, pipeline, historyStore, recordsStore, esc,
		cfg.HistoryReadLimit, cfg.PendingChoiceTTL, logger, metrics)

	api := httpapi.New(cfg, orch, historyStore, recordsStore, esc, hub, deliverer, logger, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.WithField("addr", cfg.BindAddr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
