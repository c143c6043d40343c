package main

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"llm-eval-app/internal/config"
	"llm-eval-app/internal/db"
	httpSrv "llm-eval-app/internal/http"
	"llm-eval-app/internal/logging"
	"llm-eval-app/internal/migrations"
	"llm-eval-app/internal/storage"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	// Run embedded migrations (idempotent)
	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}

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
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asq.Close()

	srv := httpSrv.NewServer(cfg.ListenAddr, &httpSrv.Server{
		Eval:     orch,
		Store:    db.NewStore(dbase),
		Queue:    asq,
		Archive:  s3c,
		APIToken: cfg.APIToken,
		Logger:   logger,
	})
	logger.Info("api listening", zap.String("addr", cfg.ListenAddr), zap.Strings("targets", orch.TargetNames()))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
