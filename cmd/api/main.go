package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"webresearch/internal/agent"
	"webresearch/internal/config"
	"webresearch/internal/httpapi"
	"webresearch/internal/llm"
	"webresearch/internal/search"
	"webresearch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	archive, err := store.Open(cfg)
	if err != nil {
		logger.Fatal("open run archive", zap.Error(err))
	}
	defer archive.Close()

	searcher, err := search.New(cfg, nil)
	if err != nil {
		logger.Fatal("build searcher", zap.Error(err))
	}

	completer := llm.NewClient(cfg, nil)
	fetcher := agent.NewHTTPFetcher(agent.FetcherConfig{
		RequestTimeout: cfg.FetchTimeout,
		MaxBytes:       cfg.FetchMaxBytes,
	}, nil)

	agentCfg := agent.Config{
		SearchQueriesPerRun: cfg.SearchQueriesPerRun,
		ResultsPerQuery:     cfg.ResultsPerQuery,
		EvidenceCap:         cfg.EvidenceCap,
		FetchWorkers:        cfg.FetchWorkers,
		ExcerptCharBudget:   cfg.ExcerptCharBudget,
		RunTimeout:          cfg.RunTimeout,
		MinSearchInterval:   cfg.MinSearchInterval,
	}
	researcher := agent.New(
		agent.NewLLMPlanner(completer, cfg.SearchQueriesPerRun),
		agent.NewCollector(searcher, fetcher, agentCfg),
		agent.NewSynthesizer(completer, cfg.ExcerptCharBudget),
		agentCfg,
		logger,
	)

	handler := httpapi.NewRouter(cfg, researcher, archive, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.ListenAddress()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
