package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bahmanfallahi/jibjib/internal/export"
)

// TelegramDelivery uploads export artifacts through the Bot API.
type TelegramDelivery struct {
	api *tgbotapi.BotAPI
}

var _ export.Delivery = (*TelegramDelivery)(nil)

func NewTelegramDelivery(api *tgbotapi.BotAPI) *TelegramDelivery {
	return &TelegramDelivery{api: api}
}

func (d *TelegramDelivery) SendText(ctx context.Context, chatID int64, text string) error {
	return d.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (d *TelegramDelivery) SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	doc.Caption = caption
	return d.send(ctx, doc)
}

func (d *TelegramDelivery) SendPhoto(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	photo.Caption = caption
	return d.send(ctx, photo)
}

// send gives up early when ctx is already done; the client library itself
// does not take a context.
func (d *TelegramDelivery) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.api.Send(c)
	return err
}
