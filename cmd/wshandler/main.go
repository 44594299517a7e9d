package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"streaming-bot/handler"
	"streaming-bot/internal/bootstrap"
	"streaming-bot/internal/config"
	"streaming-bot/internal/integrations/apigw"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(
		config.EnvWSAPIURL,
		config.EnvEventBusName,
		config.EnvEventsTable,
		config.EnvOpenSearchEndpoint,
	)
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
	pusher, err := apigw.NewFromConfig(awsCfg, cfg.WSAPIURL)
	if err != nil {
		slog.Error("failed to create push channel", "err", err)
		os.Exit(1)
	}
	chat, err := bootstrap.NewChatService(awsCfg, cfg, pusher)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewWebSocketHandler(chat, pusher)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("websocket handler ready", "streaming", cfg.Streaming, "provider", cfg.LLMProvider, "index", cfg.IndexName)
	lambda.Start(h.Handle)
}
