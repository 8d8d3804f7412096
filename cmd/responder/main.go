package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visa-notifier/internal/app"
	"visa-notifier/internal/config"
	"visa-notifier/internal/logging"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load when present")
	dryRun := flag.Bool("dry-run", false, "log replies instead of sending them to Telegram")
	flag.Parse()

	os.Exit(run(*envFile, *dryRun))
}

func run(envFile string, dryRun bool) int {
	bootLog, _, _ := logging.New(config.LogConfig{})

	appConfig, err := config.ParseConfiguration(envFile)
	if err != nil {
		bootLog.Error().Err(err).Msg("Failed to parse configuration")
		return 1
	}

	log, closer, err := logging.New(appConfig.Log)
	if err != nil {
		bootLog.Error().Err(err).Msg("Failed to initialize logging")
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responder, err := app.New(appConfig, log, app.Options{Mode: app.ModeRespond, DryRun: dryRun})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize command responder")
		return 1
	}
	defer func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		responder.Close(pushCtx)
	}()

	if _, err := responder.RespondToCommands(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to read Telegram updates")
		return 1
	}
	return 0
}
