package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"streaming-bot/handler"
	"streaming-bot/internal/bootstrap"
	"streaming-bot/internal/config"
	"streaming-bot/internal/devserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, using process environment", "err", err)
	}

	cfg, err := config.Load(config.EnvEventBusName, config.EnvEventsTable, config.EnvOpenSearchEndpoint)
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
	hub := devserver.NewHub()
	chat, err := bootstrap.NewChatService(awsCfg, cfg, hub)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	// ---- Handler ----
	wsHandler, err := handler.NewWebSocketHandler(chat, hub)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}
	srv, err := devserver.NewServer(hub, wsHandler)
	if err != nil {
		slog.Error("failed to create dev server", "err", err)
		os.Exit(1)
	}

	// ---- Server ----
	httpServer := &http.Server{
		Addr:              cfg.DevAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "err", err)
		}
	}()

	slog.Info("dev server listening", "addr", cfg.DevAddr, "streaming", cfg.Streaming)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("dev server failed", "err", err)
		os.Exit(1)
	}
}
