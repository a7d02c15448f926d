package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bahmanfallahi/jibjib/internal/model"
)

// Callback actions. Data is the action followed by "|"-separated arguments.
const (
	actionEdit         = "edit"
	actionDelete       = "delete"
	actionEditField    = "editfield"
	actionCancelEdit   = "cancel_edit"
	actionResetConfirm = "reset_confirm"
)

func callbackData(action string, args ...string) string {
	return strings.Join(append([]string{action}, args...), "|")
}

func parseCallbackData(data string) (action string, args []string) {
	parts := strings.Split(data, "|")
	return parts[0], parts[1:]
}

func (b *Bot) getExpenseKeyboard(expenseID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ ویرایش", callbackData(actionEdit, expenseID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ حذف", callbackData(actionDelete, expenseID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("انصراف", callbackData(actionCancelEdit)),
		),
	)
}

func (b *Bot) getEditFieldKeyboard(expenseID string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, field := range []model.ExpenseField{model.FieldAmount, model.FieldCategory, model.FieldNote} {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fieldLabels[field], callbackData(actionEditField, string(field), expenseID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) getCategoriesKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(model.Categories); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(string(model.Categories[i])))
		if i+1 < len(model.Categories) {
			row = append(row, tgbotapi.NewKeyboardButton(string(model.Categories[i+1])))
		}
		rows = append(rows, row)
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.OneTimeKeyboard = true
	return keyboard
}

func (b *Bot) getResetKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ بله، مطمئنم", callbackData(actionResetConfirm, "yes")),
			tgbotapi.NewInlineKeyboardButtonData("❌ نه، لغو کن", callbackData(actionResetConfirm, "no")),
		),
	)
}
