package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
)

// Texts sent to the user around an export.
const (
	TextEmpty       = "هیچ داده‌ای برای خروجی وجود ندارد."
	TextFailed      = "خطا در تولید خروجی."
	CaptionWorkbook = "خروجی اکسل"
	CaptionPie      = "نمودار توزیع هزینه‌ها"
	CaptionTrend    = "روند خرج روزانه"
)

// Source is the read side of the ledger the worker renders from.
type Source interface {
	ExportExpenses(ctx context.Context, userID int64) ([]model.Expense, error)
}

// Delivery sends export artifacts to a chat.
type Delivery interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error
	SendPhoto(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error
}

// Worker turns a Job into delivered files. It never touches conversation
// state and takes no per-user lock.
type Worker struct {
	source   Source
	renderer *Renderer
	delivery Delivery
	logger   *slog.Logger
}

func NewWorker(source Source, renderer *Renderer, delivery Delivery, logger *slog.Logger) *Worker {
	return &Worker{
		source:   source,
		renderer: renderer,
		delivery: delivery,
		logger:   applog.WithComponent(logger, applog.ComponentExport),
	}
}

// Handle runs one job. On failure the user is told and the error returned.
func (w *Worker) Handle(ctx context.Context, job Job) error {
	started := time.Now()
	log := w.logger.With(applog.FieldUserID, job.UserID, applog.FieldChatID, job.ChatID)

	if err := w.handle(ctx, job); err != nil {
		log.ErrorContext(ctx, "export failed", applog.FieldError, err)
		if sendErr := w.delivery.SendText(ctx, job.ChatID, TextFailed); sendErr != nil {
			log.ErrorContext(ctx, "failed to report export failure", applog.FieldError, sendErr)
		}
		return err
	}

	log.InfoContext(ctx, "export delivered", applog.FieldDuration, time.Since(started).Milliseconds())
	return nil
}

func (w *Worker) handle(ctx context.Context, job Job) error {
	expenses, err := w.source.ExportExpenses(ctx, job.UserID)
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		return w.delivery.SendText(ctx, job.ChatID, TextEmpty)
	}

	bundle, err := w.renderer.Render(expenses)
	if err != nil {
		return err
	}

	if err := w.delivery.SendDocument(ctx, job.ChatID, WorkbookFileName, bundle.Workbook, CaptionWorkbook); err != nil {
		return fmt.Errorf("failed to send workbook: %w", err)
	}
	if bundle.PieChart != nil {
		if err := w.delivery.SendPhoto(ctx, job.ChatID, "categories.png", bundle.PieChart, CaptionPie); err != nil {
			return fmt.Errorf("failed to send pie chart: %w", err)
		}
	}
	if bundle.Trend != nil {
		if err := w.delivery.SendPhoto(ctx, job.ChatID, "trend.png", bundle.Trend, CaptionTrend); err != nil {
			return fmt.Errorf("failed to send trend chart: %w", err)
		}
	}
	return nil
}
