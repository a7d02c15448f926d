package export

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
)

var tehran = time.FixedZone("IRST", 3*3600+1800)

func sampleExpenses() []model.Expense {
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	return []model.Expense{
		{ID: "a", UserID: 1, Amount: decimal.NewFromInt(32000), Category: model.CategoryFood, Note: "ناهار", CreatedAt: base},
		{ID: "b", UserID: 1, Amount: decimal.NewFromInt(150000), Category: model.CategoryTransport, Note: "تاکسی", CreatedAt: base.Add(24 * time.Hour)},
		{ID: "c", UserID: 1, Amount: decimal.RequireFromString("7500.5"), Category: model.CategoryOther, CreatedAt: base.Add(48 * time.Hour)},
	}
}

func TestWorkbookRows(t *testing.T) {
	r := NewRenderer(cycle.NewCalendar(tehran))

	data, err := r.Workbook(sampleExpenses())
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}

	wantHeader := []string{"timestamp", "shamsi_date", "amount", "category", "note"}
	for i, h := range wantHeader {
		if rows[0][i] != h {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], h)
		}
	}

	first := rows[1]
	if first[0] != "2024-07-01 15:30:00" {
		t.Errorf("timestamp = %q", first[0])
	}
	if first[1] != "1403/04/11" {
		t.Errorf("shamsi date = %q", first[1])
	}
	if first[2] != "32000" {
		t.Errorf("amount = %q", first[2])
	}
	if first[3] != string(model.CategoryFood) || first[4] != "ناهار" {
		t.Errorf("category/note = %q/%q", first[3], first[4])
	}
}

func TestRenderProducesCharts(t *testing.T) {
	r := NewRenderer(cycle.NewCalendar(tehran))

	bundle, err := r.Render(sampleExpenses())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(bundle.Workbook) == 0 || len(bundle.PieChart) == 0 || len(bundle.Trend) == 0 {
		t.Errorf("bundle sizes workbook=%d pie=%d trend=%d", len(bundle.Workbook), len(bundle.PieChart), len(bundle.Trend))
	}
}

type sentFile struct {
	kind    string
	name    string
	caption string
}

type fakeDelivery struct {
	mu    sync.Mutex
	texts []string
	files []sentFile
	fail  error
}

func (d *fakeDelivery) SendText(_ context.Context, _ int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return nil
}

func (d *fakeDelivery) SendDocument(_ context.Context, _ int64, name string, _ []byte, caption string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.files = append(d.files, sentFile{kind: "document", name: name, caption: caption})
	return nil
}

func (d *fakeDelivery) SendPhoto(_ context.Context, _ int64, name string, _ []byte, caption string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = append(d.files, sentFile{kind: "photo", name: name, caption: caption})
	return nil
}

type staticSource struct {
	expenses []model.Expense
	err      error
}

func (s staticSource) ExportExpenses(context.Context, int64) ([]model.Expense, error) {
	return s.expenses, s.err
}

func newTestWorker(src Source, d Delivery) *Worker {
	return NewWorker(src, NewRenderer(cycle.NewCalendar(tehran)), d, applog.Discard())
}

func TestWorkerDeliversWorkbookAndCharts(t *testing.T) {
	d := &fakeDelivery{}
	w := newTestWorker(staticSource{expenses: sampleExpenses()}, d)

	if err := w.Handle(context.Background(), NewJob(1, 10)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(d.texts) != 0 {
		t.Errorf("unexpected texts: %v", d.texts)
	}
	if len(d.files) != 3 {
		t.Fatalf("sent %d files, want 3", len(d.files))
	}
	if d.files[0].kind != "document" || d.files[0].name != WorkbookFileName {
		t.Errorf("first file = %+v", d.files[0])
	}
}

func TestWorkerEmptyLedger(t *testing.T) {
	d := &fakeDelivery{}
	w := newTestWorker(staticSource{}, d)

	if err := w.Handle(context.Background(), NewJob(1, 10)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(d.texts) != 1 || d.texts[0] != TextEmpty || len(d.files) != 0 {
		t.Errorf("texts=%v files=%v", d.texts, d.files)
	}
}

func TestWorkerReportsFailure(t *testing.T) {
	tests := []struct {
		name     string
		source   staticSource
		delivery *fakeDelivery
	}{
		{"source error", staticSource{err: errors.New("db down")}, &fakeDelivery{}},
		{"send error", staticSource{expenses: sampleExpenses()}, &fakeDelivery{fail: errors.New("telegram down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorker(tt.source, tt.delivery)
			if err := w.Handle(context.Background(), NewJob(1, 10)); err == nil {
				t.Fatal("expected error")
			}
			if len(tt.delivery.texts) != 1 || tt.delivery.texts[0] != TextFailed {
				t.Errorf("texts = %v, want failure notice", tt.delivery.texts)
			}
		})
	}
}

func TestInlineDispatcherRunsInBackground(t *testing.T) {
	d := &fakeDelivery{}
	dispatcher := NewInlineDispatcher(newTestWorker(staticSource{}, d), applog.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	if err := dispatcher.Dispatch(ctx, NewJob(1, 10)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	cancel()
	dispatcher.Wait()

	if len(d.texts) != 1 || d.texts[0] != TextEmpty {
		t.Errorf("texts = %v", d.texts)
	}
}

type recordingPublisher struct {
	jobs []Job
}

func (p *recordingPublisher) PublishExportJob(_ context.Context, job Job) error {
	p.jobs = append(p.jobs, job)
	return nil
}

func TestQueueDispatcherPublishes(t *testing.T) {
	p := &recordingPublisher{}
	job := NewJob(3, 30)
	if err := NewQueueDispatcher(p).Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(p.jobs) != 1 || p.jobs[0].UserID != 3 || p.jobs[0].ChatID != 30 {
		t.Errorf("published %+v", p.jobs)
	}
}
