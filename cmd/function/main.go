package main

import (
	"context"
	"fmt"
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

// Request is the API Gateway event carrying a Telegram update.
type Request struct {
	Body string `json:"body"`
}

// Response is returned to API Gateway.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Handler processes one webhook update. Inline exports finish before it
// returns since the runtime may freeze the process afterwards.
func Handler(ctx context.Context, request Request) (*Response, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return errorResponse(err)
	}
	if err := cfg.Validate(); err != nil {
		return errorResponse(err)
	}

	logger := applog.New(applog.Config{
		Level:  applog.ParseLevel(cfg.LogLevel),
		Format: "json",
	})

	loc, err := cfg.Location()
	if err != nil {
		return errorResponse(err)
	}

	store, err := repository.Open(repository.Options{
		Backend:     repository.Backend(cfg.StoreBackend),
		SQLitePath:  cfg.SQLiteDBPath,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Logger:      logger,
	})
	if err != nil {
		return errorResponse(err)
	}
	defer store.Close()

	tracker := service.NewExpenseTracker(store, cycle.NewCalendar(loc), logger)

	extractor, err := extraction.NewClient(ctx, extraction.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		return errorResponse(err)
	}

	api, err := bot.NewAPI(cfg.TelegramToken, "", nil)
	if err != nil {
		return errorResponse(err)
	}

	var (
		dispatcher export.Dispatcher
		inline     *export.InlineDispatcher
	)
	if cfg.AMQPURL != "" {
		client, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return errorResponse(fmt.Errorf("failed to connect to broker: %w", err))
		}
		defer client.Close()
		dispatcher = export.NewQueueDispatcher(client)
	} else {
		worker := export.NewWorker(tracker, export.NewRenderer(tracker.Calendar()), bot.NewTelegramDelivery(api), logger)
		inline = export.NewInlineDispatcher(worker, logger)
		dispatcher = inline
	}

	b := bot.NewBot(api, tracker, extractor, dispatcher, bot.Options{AdminID: cfg.AdminUserID}, logger)

	err = b.HandleWebhook(ctx, []byte(request.Body))
	if inline != nil {
		inline.Wait()
	}
	if err != nil {
		return errorResponse(err)
	}

	return &Response{
		StatusCode: 200,
		Body:       "",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

func errorResponse(err error) (*Response, error) {
	return &Response{
		StatusCode: 500,
		Body:       err.Error(),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

func main() {
	// Entry point for local builds; the runtime invokes Handler.
}
