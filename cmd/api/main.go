package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cakestudio/internal/catalog"
	"cakestudio/internal/config"
	"cakestudio/internal/events"
	"cakestudio/internal/intent"
	"cakestudio/internal/llm"
	"cakestudio/internal/logger"
	"cakestudio/internal/server"
	"cakestudio/internal/session"
	"cakestudio/internal/vision"
)

func main() {
	cfg := config.FromEnv()

	zlog := logger.New(cfg.LogFilePath)
	defer func() { _ = zlog.Sync() }()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	var chatClient llm.Client
	var imageClient llm.ImageClient
	if cfg.AI.APIKey != "" {
		chatClient = llm.NewOpenAIClient(llm.Config{
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.ChatModel,
			BaseURL: cfg.AI.BaseURL,
		})
		imageClient = llm.NewOpenAIImageClient(llm.Config{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
		})
		zlog.Info("AI clients ready", zap.String("chat_model", cfg.AI.ChatModel), zap.String("image_model", cfg.AI.ImageModel))
	} else {
		zlog.Warn("no API key configured, AI components disabled")
	}

	broker := events.NewBroker()
	registry := session.NewRegistry(cfg.SessionTTL)
	sessions := session.NewService(
		registry,
		cat,
		intent.NewExtractor(chatClient),
		vision.NewDesigner(chatClient),
		vision.NewSynthesizer(imageClient, cfg.AI.ImageModel, cfg.AI.AltImageModel),
		broker,
		zlog,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sessions.Run(ctx); err != nil {
		log.Fatalf("failed to start session worker: %v", err)
	}

	srv := server.New(cfg.Port, server.Handler{
		Sessions: sessions,
		Events:   broker,
		Logger:   zlog,
	}, zlog)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		zlog.Info("shutting down server")
		cancel()
		if err := sessions.Close(); err != nil {
			zlog.Error("worker close error", zap.Error(err))
		}
		if err := srv.Close(); err != nil {
			zlog.Error("server close error", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
