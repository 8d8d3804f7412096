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
	dryRun := flag.Bool("dry-run", false, "log messages instead of sending them to Telegram")
	notifyTest := flag.Bool("notify-test", false, "send a Telegram test message and exit")
	flag.Parse()

	os.Exit(run(*envFile, *dryRun, *notifyTest))
}

func run(envFile string, dryRun, notifyTest bool) int {
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

	mode := app.ModeCheck
	if notifyTest {
		mode = app.ModeNotifyTest
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker, err := app.New(appConfig, log, app.Options{Mode: mode, DryRun: dryRun})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize visa notifier")
		return 1
	}
	defer func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		checker.Close(pushCtx)
	}()

	if notifyTest {
		if err := checker.SendTestNotification(ctx); err != nil {
			log.Error().Err(err).Msg("Telegram test notification failed")
			return 1
		}
		return 0
	}

	if _, err := checker.CheckSlots(ctx); err != nil {
		log.Error().Err(err).Msg("Visa slot check failed")
		return 1
	}
	return 0
}
