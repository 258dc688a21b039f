package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"xenonbot/internal/bot"
	"xenonbot/internal/config"
	"xenonbot/internal/games"
	"xenonbot/internal/moderation"
	"xenonbot/internal/scheduler"
	"xenonbot/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	sched := scheduler.New(logger)
	modService := moderation.NewService(store, sched, logger)
	gamesManager := games.NewManager(store, logger, time.Duration(cfg.Games.EditDelaySeconds)*time.Second)

	botSvc, err := bot.New(cfg, logger, store, modService, gamesManager)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	sched.StopAll()
	botSvc.Close()
}
