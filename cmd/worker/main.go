package main

import (
	"context"

	"go.uber.org/zap"

	"llm-eval-app/internal/config"
	"llm-eval-app/internal/db"
	"llm-eval-app/internal/logging"
	"llm-eval-app/internal/storage"
	"llm-eval-app/internal/worker"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	dbase, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	s3c, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("object storage", zap.Error(err))
	}
	orch, err := cfg.Orchestrator(ctx, logger)
	if err != nil {
		logger.Fatal("build orchestrator", zap.Error(err))
	}

	w := &worker.Server{
		Store:   db.NewStore(dbase),
		Archive: s3c,
		Eval:    orch,
		Logger:  logger,
	}
	if err := worker.Run(cfg.RedisAddr, w); err != nil {
		logger.Fatal("worker", zap.Error(err))
	}
}
