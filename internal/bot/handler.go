package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bahmanfallahi/jibjib/internal/export"
	"github.com/bahmanfallahi/jibjib/internal/extraction"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/money"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start", "help":
		b.send(ctx, message.Chat.ID, textWelcome)
	case "reportdaily":
		b.handleReport(ctx, message, service.DailyReport)
	case "reportweekly":
		b.handleReport(ctx, message, service.WeeklyReport)
	case "setbudget":
		b.handleSetBudget(ctx, message)
	case "budget":
		b.handleBudgetStatus(ctx, message)
	case "undo":
		b.handleUndo(ctx, message)
	case "export":
		b.handleExport(ctx, message)
	case "reset":
		msg := tgbotapi.NewMessage(message.Chat.ID, textResetWarning)
		msg.ReplyMarkup = b.getResetKeyboard()
		b.sendMessage(ctx, msg)
	case "cancel":
		b.handleCancel(ctx, message)
	case "stats":
		b.handleStats(ctx, message)
	default:
		b.send(ctx, message.Chat.ID, textUnknownCommand)
	}
	return nil
}

func (b *Bot) handleReport(ctx context.Context, message *tgbotapi.Message, kind service.ReportType) {
	report, err := b.tracker.Report(ctx, message.From.ID, kind)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, err)
		return
	}
	if report.Empty() {
		b.send(ctx, message.Chat.ID, textNoExpenses)
		return
	}
	b.send(ctx, message.Chat.ID, reportText(report))
}

// handleSetBudget sets the budget directly when an amount follows the
// command, otherwise it opens the budget prompt.
func (b *Bot) handleSetBudget(ctx context.Context, message *tgbotapi.Message) {
	raw := strings.TrimSpace(message.CommandArguments())
	if raw == "" {
		if err := b.tracker.BeginBudgetPrompt(ctx, message.From.ID); err != nil {
			b.sendErrorMessage(ctx, message.Chat.ID, err)
			return
		}
		b.send(ctx, message.Chat.ID, textBudgetPrompt)
		return
	}

	amount, err := money.Parse(raw)
	if err != nil {
		b.send(ctx, message.Chat.ID, setBudgetInvalidText(raw))
		return
	}
	budget, err := b.tracker.SetBudget(ctx, message.From.ID, amount)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, err)
		return
	}
	b.send(ctx, message.Chat.ID, budgetSetText(budget))
}

func (b *Bot) handleBudgetStatus(ctx context.Context, message *tgbotapi.Message) {
	status, err := b.tracker.BudgetStatus(ctx, message.From.ID)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, err)
		return
	}
	if !status.HasBudget() {
		b.send(ctx, message.Chat.ID, textNoBudget)
		return
	}
	b.send(ctx, message.Chat.ID, budgetStatusText(status))
}

func (b *Bot) handleUndo(ctx context.Context, message *tgbotapi.Message) {
	expense, err := b.tracker.LastExpense(ctx, message.From.ID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		b.send(ctx, message.Chat.ID, textNoRecent)
		return
	case err != nil:
		b.sendErrorMessage(ctx, message.Chat.ID, err)
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, lastExpenseText(expense))
	msg.ReplyMarkup = b.getExpenseKeyboard(expense.ID)
	b.sendMessage(ctx, msg)
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) {
	b.send(ctx, message.Chat.ID, textExportStarted)

	if err := b.exporter.Dispatch(ctx, export.NewJob(message.From.ID, message.Chat.ID)); err != nil {
		b.logger.ErrorContext(ctx, "failed to dispatch export",
			applog.FieldUserID, message.From.ID, applog.FieldError, err)
		b.send(ctx, message.Chat.ID, textExportFailed)
	}
}

func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) {
	cleared, err := b.tracker.Cancel(ctx, message.From.ID)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, err)
		return
	}
	if !cleared {
		b.send(ctx, message.Chat.ID, textNothingPending)
		return
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, textCancelled)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	b.sendMessage(ctx, msg)
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	if b.adminID == 0 || message.From.ID != b.adminID {
		b.send(ctx, message.Chat.ID, textForbidden)
		return
	}
	stats, err := b.tracker.AdminStats(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to collect stats", applog.FieldError, err)
		b.send(ctx, message.Chat.ID, textStatsFailed)
		return
	}
	b.send(ctx, message.Chat.ID, statsText(stats))
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	// Answer first so the client stops its spinner even if handling fails.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.WarnContext(ctx, "failed to answer callback", applog.FieldError, err)
	}

	userID := callback.From.ID
	msg := callback.Message
	action, args := parseCallbackData(callback.Data)

	switch {
	case action == actionResetConfirm && len(args) == 1:
		if args[0] != "yes" {
			b.replaceText(ctx, msg, textResetCancelled)
			return nil
		}
		res, err := b.tracker.ResetAll(ctx, userID, true)
		if err != nil {
			b.sendErrorMessage(ctx, msg.Chat.ID, err)
			return nil
		}
		b.logger.InfoContext(ctx, "ledger reset", applog.FieldUserID, userID,
			"expenses", res.Expenses, "budgets", res.Budgets)
		b.replaceText(ctx, msg, textResetDone)

	case action == actionDelete && len(args) == 1:
		deleted, err := b.tracker.Delete(ctx, userID, args[0])
		if err != nil {
			b.sendErrorMessage(ctx, msg.Chat.ID, err)
			return nil
		}
		if deleted {
			b.replaceText(ctx, msg, textDeleted)
		} else {
			b.replaceText(ctx, msg, textAlreadyDeleted)
		}

	case action == actionEdit && len(args) == 1:
		edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, textEditWhich, b.getEditFieldKeyboard(args[0]))
		if _, err := b.api.Send(edit); err != nil {
			b.logger.WarnContext(ctx, "failed to edit message", applog.FieldError, err)
		}

	case action == actionEditField && len(args) == 2:
		b.handleEditField(ctx, userID, msg.Chat.ID, args[0], args[1])

	case action == actionCancelEdit:
		b.replaceText(ctx, msg, textCancelled)

	default:
		b.logger.WarnContext(ctx, "unknown callback", applog.FieldUserID, userID, "data", callback.Data)
	}
	return nil
}

func (b *Bot) handleEditField(ctx context.Context, userID, chatID int64, rawField, expenseID string) {
	field, err := model.ParseExpenseField(rawField)
	if err != nil {
		b.send(ctx, chatID, textInvalidField)
		return
	}

	err = b.tracker.BeginEdit(ctx, userID, expenseID, field)
	switch {
	case errors.Is(err, model.ErrNotFound):
		b.send(ctx, chatID, textAlreadyDeleted)
		return
	case err != nil:
		b.sendErrorMessage(ctx, chatID, err)
		return
	}

	prompt := tgbotapi.NewMessage(chatID, editPrompt(field))
	if field == model.FieldCategory {
		prompt.ReplyMarkup = b.getCategoriesKeyboard()
	}
	b.sendMessage(ctx, prompt)
}

// handleMessage treats text as the answer to a pending prompt, or failing
// that as a new expense.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return nil
	}
	userID, chatID := message.From.ID, message.Chat.ID

	result, err := b.tracker.ResolvePending(ctx, userID, text)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, err)
		return nil
	}

	switch result.Outcome {
	case service.PendingBudgetSet:
		b.send(ctx, chatID, budgetSetText(result.Budget))
	case service.PendingBudgetInvalid:
		b.send(ctx, chatID, textBudgetRetry)
	case service.PendingEditApplied:
		msg := tgbotapi.NewMessage(chatID, textEdited)
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		b.sendMessage(ctx, msg)
	case service.PendingEditInvalid:
		b.send(ctx, chatID, editInvalidText(result.Field))
	case service.PendingEditMissing:
		b.send(ctx, chatID, textAlreadyDeleted)
	case service.PendingNone:
		b.recordExpense(ctx, userID, chatID, text)
	}
	return nil
}

func (b *Bot) recordExpense(ctx context.Context, userID, chatID int64, text string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.DebugContext(ctx, "failed to send chat action", applog.FieldError, err)
	}

	draft, err := b.extractor.Extract(ctx, text)
	switch {
	case errors.Is(err, extraction.ErrInconclusive):
		b.send(ctx, chatID, textAIInconclusive)
		return
	case errors.Is(err, extraction.ErrUnavailable):
		b.logger.WarnContext(ctx, "extraction unavailable", applog.FieldUserID, userID, applog.FieldError, err)
		b.send(ctx, chatID, textAIUnavailable)
		return
	case err != nil:
		b.sendErrorMessage(ctx, chatID, err)
		return
	}

	expense, alert, err := b.tracker.Append(ctx, userID, *draft)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, err)
		return
	}

	b.send(ctx, chatID, expenseSavedText(expense))
	if alert != nil {
		b.send(ctx, chatID, alertText(alert))
	}
}
