// Package bot is the Telegram surface of the tracker: it registers users,
// announces rollovers and alerts, and routes commands, callbacks and free
// text to the ledger service.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bahmanfallahi/jibjib/internal/export"
	"github.com/bahmanfallahi/jibjib/internal/extraction"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

const (
	defaultConcurrency = 16
	updateTimeout      = 60 * time.Second
)

// NewAPI connects to the Bot API. An empty endpoint means api.telegram.org.
func NewAPI(token, endpoint string, client *http.Client) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return api, nil
}

// Options tunes a Bot.
type Options struct {
	// AdminID may run /stats. Zero disables the command.
	AdminID int64
	// MaxConcurrentUpdates bounds parallel handling in Start.
	MaxConcurrentUpdates int
}

type Bot struct {
	api       *tgbotapi.BotAPI
	tracker   *service.ExpenseTracker
	extractor extraction.Extractor
	exporter  export.Dispatcher
	adminID   int64
	limit     int
	logger    *slog.Logger
}

func NewBot(api *tgbotapi.BotAPI, tracker *service.ExpenseTracker, extractor extraction.Extractor, exporter export.Dispatcher, opts Options, logger *slog.Logger) *Bot {
	limit := opts.MaxConcurrentUpdates
	if limit <= 0 {
		limit = defaultConcurrency
	}
	return &Bot{
		api:       api,
		tracker:   tracker,
		extractor: extractor,
		exporter:  exporter,
		adminID:   opts.AdminID,
		limit:     limit,
		logger:    applog.WithComponent(logger, applog.ComponentBot),
	}
}

// Start long-polls until ctx is cancelled, handling at most limit updates
// at once. In-flight updates finish before Start returns.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	var g errgroup.Group
	g.SetLimit(b.limit)

	b.logger.InfoContext(ctx, "polling for updates", "username", b.api.Self.UserName, "concurrency", b.limit)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return g.Wait()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.processUpdate(ctx, update)
				return nil
			})
		}
	}
}

// HandleWebhook handles one update delivered by a webhook call.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to decode update: %w", err)
	}
	b.processUpdate(ctx, update)
	return nil
}

// processUpdate detaches from ctx's cancellation so a shutdown does not cut
// a ledger write in half.
func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), updateTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "panic while handling update",
				applog.FieldUpdateID, update.UpdateID, "panic", r)
		}
	}()

	if err := b.handleUpdate(ctx, update); err != nil {
		b.logger.ErrorContext(ctx, "failed to handle update",
			applog.FieldUpdateID, update.UpdateID, applog.FieldError, err)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	var (
		from   *tgbotapi.User
		chatID int64
	)
	switch {
	case update.Message != nil && update.Message.From != nil:
		from, chatID = update.Message.From, update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		from, chatID = update.CallbackQuery.From, update.CallbackQuery.Message.Chat.ID
	default:
		return nil
	}

	if err := b.observe(ctx, from, chatID); err != nil {
		b.send(ctx, chatID, textRetry)
		return err
	}

	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message.IsCommand() {
		return b.handleCommand(ctx, update.Message)
	}
	return b.handleMessage(ctx, update.Message)
}

// observe registers the sender and announces a finished cycle before the
// event itself is answered.
func (b *Bot) observe(ctx context.Context, from *tgbotapi.User, chatID int64) error {
	if _, err := b.tracker.Register(ctx, &model.User{
		ID:        from.ID,
		FirstName: from.FirstName,
		Username:  from.UserName,
	}); err != nil {
		return err
	}

	summary, err := b.tracker.CheckRollover(ctx, from.ID)
	if err != nil {
		return err
	}
	if summary != nil {
		b.logger.InfoContext(ctx, "cycle rolled over",
			applog.FieldUserID, from.ID, applog.FieldCycle, summary.PreviousCycle.String())
		b.send(ctx, chatID, rolloverText(summary))
	}
	return nil
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	b.sendMessage(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(ctx context.Context, msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WarnContext(ctx, "failed to send message",
			applog.FieldChatID, msg.ChatID, applog.FieldError, err)
	}
}

// replaceText edits the message that carried an inline keyboard.
func (b *Bot) replaceText(ctx context.Context, msg *tgbotapi.Message, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text)); err != nil {
		b.logger.WarnContext(ctx, "failed to edit message",
			applog.FieldChatID, msg.Chat.ID, applog.FieldError, err)
	}
}

func (b *Bot) sendErrorMessage(ctx context.Context, chatID int64, err error) {
	b.logger.ErrorContext(ctx, "request failed", applog.FieldChatID, chatID, applog.FieldError, err)
	b.send(ctx, chatID, textRetry)
}
