package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/config"
	"github.com/batyrai/backend/internal/telegram"
)

func main() {
	cfg := config.Load()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot := telegram.NewBot(cfg.TelegramBotToken, cfg.TelegramAPIURL)
	commands := telegram.NewCommands(bot, cfg.WebAppURL, clock.Real())

	log.Printf("Bot started, Mini App at %s", cfg.WebAppURL)
	if err := commands.Run(ctx); err != nil {
		log.Printf("Bot stopped: %v", err)
		os.Exit(1)
	}
	log.Println("Bot stopped")
}
