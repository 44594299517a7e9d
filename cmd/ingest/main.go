package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"streaming-bot/handler"
	"streaming-bot/internal/bootstrap"
	"streaming-bot/internal/config"
	"streaming-bot/internal/integrations/s3store"
	"streaming-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(config.EnvOpenSearchEndpoint)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	bootstrap.InitLogger(cfg)

	// ---- AWS SDK config ----
	awsCfg, err := bootstrap.AWS(ctx, cfg)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	reader, err := s3store.New(awss3.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create object reader", "err", err)
		os.Exit(1)
	}
	models, err := bootstrap.NewModels(awsCfg, cfg)
	if err != nil {
		slog.Error("failed to create models", "err", err)
		os.Exit(1)
	}
	index, err := bootstrap.NewIndex(awsCfg, cfg)
	if err != nil {
		slog.Error("failed to create vector index", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	svc, err := usecase.NewIngestService(reader, models.Embedder, index, nil)
	if err != nil {
		slog.Error("failed to create ingest service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewIngestHandler(svc)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
