package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	applog "github.com/bahmanfallahi/jibjib/internal/log"
)

// Dispatcher accepts export jobs without running them on the caller's goroutine.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Publisher is the queue side of QueueDispatcher.
type Publisher interface {
	PublishExportJob(ctx context.Context, job Job) error
}

// QueueDispatcher hands jobs to a broker for a separate worker process.
type QueueDispatcher struct {
	publisher Publisher
}

func NewQueueDispatcher(publisher Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	return d.publisher.PublishExportJob(ctx, job)
}

const inlineJobTimeout = 2 * time.Minute

// InlineDispatcher runs jobs on background goroutines in this process.
type InlineDispatcher struct {
	worker *Worker
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewInlineDispatcher(worker *Worker, logger *slog.Logger) *InlineDispatcher {
	return &InlineDispatcher{worker: worker, logger: applog.WithComponent(logger, applog.ComponentExport)}
}

// Dispatch starts the job and returns at once. The job outlives ctx's
// cancellation but not its values.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job Job) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inlineJobTimeout)
		defer cancel()
		// Handle logs and reports its own failures.
		_ = d.worker.Handle(jobCtx, job)
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
