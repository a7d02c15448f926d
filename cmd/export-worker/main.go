package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/bahmanfallahi/jibjib/internal/bot"
	"github.com/bahmanfallahi/jibjib/internal/config"
	"github.com/bahmanfallahi/jibjib/internal/cycle"
	"github.com/bahmanfallahi/jibjib/internal/export"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/queue"
	"github.com/bahmanfallahi/jibjib/internal/repository"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := applog.New(applog.Config{
		Level:  applog.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})
	slog.SetDefault(logger)
	logger = applog.WithComponent(logger, applog.ComponentWorker)

	if err := cfg.ValidateExportWorker(); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := repository.Open(repository.Options{
		Backend:     repository.Backend(cfg.StoreBackend),
		SQLitePath:  cfg.SQLiteDBPath,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	tracker := service.NewExpenseTracker(store, cycle.NewCalendar(loc), logger)

	api, err := bot.NewAPI(cfg.TelegramToken, "", nil)
	if err != nil {
		return err
	}
	worker := export.NewWorker(tracker, export.NewRenderer(tracker.Calendar()), bot.NewTelegramDelivery(api), logger)

	client, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("consuming export jobs", applog.FieldOperation, applog.OpStartup, "queue", cfg.AMQPQueue)

	err = client.Run(ctx, worker.Handle)
	logger.Info("export worker stopped", applog.FieldOperation, applog.OpShutdown)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
