package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"streaming-bot/handler"
	"streaming-bot/internal/bootstrap"
	"streaming-bot/internal/config"
	"streaming-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(config.EnvEventsTable)
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
	models, err := bootstrap.NewModels(awsCfg, cfg)
	if err != nil {
		slog.Error("failed to create models", "err", err)
		os.Exit(1)
	}
	eventLog, err := bootstrap.NewEventLog(awsCfg, cfg)
	if err != nil {
		slog.Error("failed to create event log", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	svc, err := usecase.NewSentimentService(models.Completer, eventLog)
	if err != nil {
		slog.Error("failed to create sentiment service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewSubscriberHandler("sentiment", svc)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
