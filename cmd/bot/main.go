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
	"github.com/bahmanfallahi/jibjib/internal/extraction"
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
	logger = applog.WithComponent(logger, applog.ComponentApp)

	if err := cfg.Validate(); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	extractor, err := extraction.NewClient(ctx, extraction.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		return err
	}

	api, err := bot.NewAPI(cfg.TelegramToken, "", nil)
	if err != nil {
		return err
	}

	var (
		dispatcher export.Dispatcher
		inline     *export.InlineDispatcher
	)
	if cfg.AMQPURL != "" {
		client, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer client.Close()
		dispatcher = export.NewQueueDispatcher(client)
	} else {
		worker := export.NewWorker(tracker, export.NewRenderer(tracker.Calendar()), bot.NewTelegramDelivery(api), logger)
		inline = export.NewInlineDispatcher(worker, logger)
		dispatcher = inline
	}

	b := bot.NewBot(api, tracker, extractor, dispatcher, bot.Options{
		AdminID:              cfg.AdminUserID,
		MaxConcurrentUpdates: cfg.MaxConcurrentUpdates,
	}, logger)

	logger.Info("starting bot",
		applog.FieldOperation, applog.OpStartup,
		"store", cfg.StoreBackend,
		"timezone", loc.String(),
		"queued_exports", inline == nil)

	err = b.Start(ctx)

	logger.Info("shutting down", applog.FieldOperation, applog.OpShutdown)
	if inline != nil {
		inline.Wait()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
