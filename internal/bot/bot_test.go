package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	"github.com/bahmanfallahi/jibjib/internal/export"
	"github.com/bahmanfallahi/jibjib/internal/extraction"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/repository"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

const adminID = 1000

type apiCall struct {
	Method string
	Params url.Values
}

// fakeTelegram answers Bot API calls and records them.
type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	params := url.Values{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			params = url.Values(r.MultipartForm.Value)
		}
	} else if err := r.ParseForm(); err == nil {
		params = r.PostForm
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"jibjib","username":"jibjib_bot"}}`)
	case "answerCallbackQuery", "sendChatAction":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		chatID := params.Get("chat_id")
		if chatID == "" {
			chatID = "0"
		}
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%s,"type":"private"}}}`, chatID)
	}
}

func (f *fakeTelegram) Calls(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns sent and edited message texts in order.
func (f *fakeTelegram) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Method == "sendMessage" || c.Method == "editMessageText" {
			out = append(out, c.Params.Get("text"))
		}
	}
	return out
}

func (f *fakeTelegram) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

type stubExtractor struct {
	mu    sync.Mutex
	draft *model.ExpenseDraft
	err   error
	calls int
}

func (s *stubExtractor) Extract(context.Context, string) (*model.ExpenseDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	d := *s.draft
	return &d, nil
}

type recordingDispatcher struct {
	jobs []export.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job export.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type testEnv struct {
	bot       *Bot
	telegram  *fakeTelegram
	tracker   *service.ExpenseTracker
	repo      *repository.SQLiteRepository
	extractor *stubExtractor
	exporter  *recordingDispatcher
}

func setupBot(t *testing.T) *testEnv {
	t.Helper()

	telegram := &fakeTelegram{}
	srv := httptest.NewServer(telegram)
	t.Cleanup(srv.Close)

	api, err := NewAPI("TEST-TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}

	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tracker := service.NewExpenseTracker(repo, cycle.NewCalendar(nil), applog.Discard())
	extractor := &stubExtractor{draft: &model.ExpenseDraft{
		Amount:   decimal.NewFromInt(32000),
		Category: model.CategoryFood,
		Note:     "قهوه",
	}}
	exporter := &recordingDispatcher{}

	b := NewBot(api, tracker, extractor, exporter, Options{AdminID: adminID}, applog.Discard())
	telegram.Reset()

	return &testEnv{bot: b, telegram: telegram, tracker: tracker, repo: repo, extractor: extractor, exporter: exporter}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Sara", UserName: "sara"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID, FirstName: "Sara"},
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		},
		Data: data,
	}}
}

func (e *testEnv) do(u tgbotapi.Update) {
	e.bot.processUpdate(context.Background(), u)
}

func (e *testEnv) lastText(t *testing.T) string {
	t.Helper()
	texts := e.telegram.Texts()
	if len(texts) == 0 {
		t.Fatal("no message was sent")
	}
	return texts[len(texts)-1]
}

func TestTextMessageRecordsExpense(t *testing.T) {
	env := setupBot(t)

	env.do(textUpdate(5, "۳۲ هزار قهوه"))

	if n := len(env.telegram.Calls("sendChatAction")); n != 1 {
		t.Errorf("sendChatAction calls = %d, want 1", n)
	}
	got := env.lastText(t)
	if !strings.Contains(got, "✅ هزینه ثبت شد") || !strings.Contains(got, "32,000 تومان") || !strings.Contains(got, "قهوه") {
		t.Errorf("confirmation = %q", got)
	}

	last, err := env.tracker.LastExpense(context.Background(), 5)
	if err != nil {
		t.Fatalf("LastExpense: %v", err)
	}
	if !last.Amount.Equal(decimal.NewFromInt(32000)) || last.Category != model.CategoryFood {
		t.Errorf("stored expense = %+v", last)
	}
}

func TestAlertIsSentAfterConfirmation(t *testing.T) {
	env := setupBot(t)
	env.do(textUpdate(5, "/setbudget 100000"))
	if got := env.lastText(t); !strings.Contains(got, "100,000 تومان") {
		t.Fatalf("setbudget reply = %q", got)
	}

	env.extractor.draft.Amount = decimal.NewFromInt(60000)
	env.telegram.Reset()
	env.do(textUpdate(5, "شصت هزار خرید"))

	texts := env.telegram.Texts()
	if len(texts) != 2 {
		t.Fatalf("sent %d messages, want confirmation and alert: %q", len(texts), texts)
	}
	if !strings.Contains(texts[0], "هزینه ثبت شد") {
		t.Errorf("first message = %q, want confirmation", texts[0])
	}
	if !strings.Contains(texts[1], "نصف بودجه") || !strings.Contains(texts[1], "60٪") {
		t.Errorf("second message = %q, want 50%% alert", texts[1])
	}
}

func TestBudgetPromptFlow(t *testing.T) {
	env := setupBot(t)

	env.do(textUpdate(5, "/setbudget"))
	if got := env.lastText(t); got != textBudgetPrompt {
		t.Fatalf("prompt = %q", got)
	}

	env.do(textUpdate(5, "خیلی زیاد"))
	if got := env.lastText(t); got != textBudgetRetry {
		t.Fatalf("invalid reply = %q", got)
	}

	env.do(textUpdate(5, "۵۰۰ هزار"))
	if got := env.lastText(t); !strings.Contains(got, "500,000 تومان") {
		t.Fatalf("budget set reply = %q", got)
	}
	if env.extractor.calls != 0 {
		t.Errorf("extractor called %d times while a prompt was pending", env.extractor.calls)
	}

	env.do(textUpdate(5, "/budget"))
	if got := env.lastText(t); !strings.Contains(got, "500,000 تومان") || !strings.Contains(got, "🟢") {
		t.Errorf("status = %q", got)
	}
}

func TestSetBudgetRejectsBadArgument(t *testing.T) {
	env := setupBot(t)
	env.do(textUpdate(5, "/setbudget -20"))
	if got := env.lastText(t); got != setBudgetInvalidText("-20") {
		t.Errorf("reply = %q", got)
	}
	env.do(textUpdate(5, "/budget"))
	if got := env.lastText(t); got != textNoBudget {
		t.Errorf("status = %q", got)
	}
}

func TestUndoAndDeleteCallback(t *testing.T) {
	env := setupBot(t)

	env.do(textUpdate(5, "/undo"))
	if got := env.lastText(t); got != textNoRecent {
		t.Fatalf("undo without expenses = %q", got)
	}

	env.do(textUpdate(5, "قهوه"))
	last, _ := env.tracker.LastExpense(context.Background(), 5)

	env.telegram.Reset()
	env.do(textUpdate(5, "/undo"))
	sent := env.telegram.Calls("sendMessage")
	if len(sent) != 1 || !strings.Contains(sent[0].Params.Get("reply_markup"), "delete|"+last.ID) {
		t.Fatalf("undo message = %+v", sent)
	}

	env.do(callbackUpdate(5, "delete|"+last.ID))
	if got := env.lastText(t); got != textDeleted {
		t.Errorf("delete reply = %q", got)
	}
	env.do(callbackUpdate(5, "delete|"+last.ID))
	if got := env.lastText(t); got != textAlreadyDeleted {
		t.Errorf("second delete reply = %q", got)
	}
	if n := len(env.telegram.Calls("answerCallbackQuery")); n != 2 {
		t.Errorf("answered %d callbacks, want 2", n)
	}
}

func TestEditThroughCallbacks(t *testing.T) {
	env := setupBot(t)
	env.do(textUpdate(5, "قهوه"))
	last, _ := env.tracker.LastExpense(context.Background(), 5)

	env.do(callbackUpdate(5, "edit|"+last.ID))
	edits := env.telegram.Calls("editMessageText")
	if len(edits) != 1 || !strings.Contains(edits[0].Params.Get("reply_markup"), "editfield|note|"+last.ID) {
		t.Fatalf("edit menu = %+v", edits)
	}

	env.do(callbackUpdate(5, "editfield|note|"+last.ID))
	if got := env.lastText(t); got != editPrompt(model.FieldNote) {
		t.Fatalf("edit prompt = %q", got)
	}

	env.do(textUpdate(5, "شام"))
	if got := env.lastText(t); got != textEdited {
		t.Fatalf("edit reply = %q", got)
	}
	updated, _ := env.tracker.LastExpense(context.Background(), 5)
	if updated.Note != "شام" || !updated.Amount.Equal(last.Amount) {
		t.Errorf("after edit = %+v", updated)
	}

	env.do(callbackUpdate(5, "editfield|amount|"+last.ID))
	env.do(textUpdate(5, "-5"))
	if got := env.lastText(t); got != textInvalidAmount {
		t.Errorf("invalid amount reply = %q", got)
	}
	if env.extractor.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", env.extractor.calls)
	}
}

func TestResetConfirmation(t *testing.T) {
	env := setupBot(t)
	env.do(textUpdate(5, "قهوه"))

	env.do(textUpdate(5, "/reset"))
	if got := env.lastText(t); got != textResetWarning {
		t.Fatalf("reset warning = %q", got)
	}

	env.do(callbackUpdate(5, "reset_confirm|no"))
	if got := env.lastText(t); got != textResetCancelled {
		t.Errorf("cancel reply = %q", got)
	}
	if _, err := env.tracker.LastExpense(context.Background(), 5); err != nil {
		t.Fatalf("expense gone after cancelled reset: %v", err)
	}

	env.do(callbackUpdate(5, "reset_confirm|yes"))
	if got := env.lastText(t); got != textResetDone {
		t.Errorf("reset reply = %q", got)
	}
	expenses, _ := env.tracker.ExportExpenses(context.Background(), 5)
	if len(expenses) != 0 {
		t.Errorf("%d expenses survived reset", len(expenses))
	}
}

func TestExtractionFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unavailable", fmt.Errorf("%w: status 503", extraction.ErrUnavailable), textAIUnavailable},
		{"inconclusive", extraction.ErrInconclusive, textAIInconclusive},
		{"other", errors.New("boom"), textRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupBot(t)
			env.extractor.err = tt.err

			env.do(textUpdate(5, "یه چیزی"))
			if got := env.lastText(t); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
			if _, err := env.tracker.LastExpense(context.Background(), 5); !errors.Is(err, model.ErrNotFound) {
				t.Errorf("an expense was stored: %v", err)
			}
		})
	}
}

func TestExportCommand(t *testing.T) {
	env := setupBot(t)
	env.do(textUpdate(5, "/export"))

	if got := env.lastText(t); got != textExportStarted {
		t.Errorf("reply = %q", got)
	}
	if len(env.exporter.jobs) != 1 || env.exporter.jobs[0].UserID != 5 || env.exporter.jobs[0].ChatID != 5 {
		t.Errorf("jobs = %+v", env.exporter.jobs)
	}

	env.exporter.err = errors.New("broker down")
	env.do(textUpdate(5, "/export"))
	if got := env.lastText(t); got != textExportFailed {
		t.Errorf("reply after dispatch failure = %q", got)
	}
}

func TestStatsIsAdminOnly(t *testing.T) {
	env := setupBot(t)

	env.do(textUpdate(5, "/stats"))
	if got := env.lastText(t); got != textForbidden {
		t.Errorf("non-admin reply = %q", got)
	}

	env.do(textUpdate(adminID, "/stats"))
	got := env.lastText(t)
	if !strings.Contains(got, "کل کاربران: 2") || !strings.Contains(got, "کاربر جدید") {
		t.Errorf("stats = %q", got)
	}
}

func TestCancelAndUnknownCommand(t *testing.T) {
	env := setupBot(t)

	env.do(textUpdate(5, "/cancel"))
	if got := env.lastText(t); got != textNothingPending {
		t.Errorf("cancel with nothing pending = %q", got)
	}

	env.do(textUpdate(5, "/setbudget"))
	env.do(textUpdate(5, "/cancel"))
	if got := env.lastText(t); got != textCancelled {
		t.Errorf("cancel reply = %q", got)
	}

	env.do(textUpdate(5, "/frobnicate"))
	if got := env.lastText(t); got != textUnknownCommand {
		t.Errorf("unknown command reply = %q", got)
	}
}

func TestRolloverSummaryPrecedesReply(t *testing.T) {
	env := setupBot(t)
	ctx := context.Background()

	env.do(textUpdate(5, "/start"))

	current := env.tracker.CurrentCycle()
	ok, err := env.repo.AdvanceObservedCycle(ctx, 5, current.Index(), current.Prev().Index())
	if err != nil || !ok {
		t.Fatalf("failed to rewind observed cycle: %v, %v", ok, err)
	}

	env.telegram.Reset()
	env.do(textUpdate(5, "/budget"))

	texts := env.telegram.Texts()
	if len(texts) != 2 {
		t.Fatalf("sent %q, want summary and status", texts)
	}
	if !strings.Contains(texts[0], "به پایان رسید") || !strings.Contains(texts[0], "بودجه‌ای تنظیم نشده بود") {
		t.Errorf("summary = %q", texts[0])
	}
	if texts[1] != textNoBudget {
		t.Errorf("reply = %q", texts[1])
	}

	env.telegram.Reset()
	env.do(textUpdate(5, "/budget"))
	if texts := env.telegram.Texts(); len(texts) != 1 {
		t.Errorf("summary repeated: %q", texts)
	}
}

func TestHandleWebhook(t *testing.T) {
	env := setupBot(t)

	update := textUpdate(9, "/help")
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := env.bot.HandleWebhook(context.Background(), body); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if got := env.lastText(t); got != textWelcome {
		t.Errorf("reply = %q", got)
	}

	if err := env.bot.HandleWebhook(context.Background(), []byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestTelegramDeliveryUploads(t *testing.T) {
	env := setupBot(t)
	d := NewTelegramDelivery(env.bot.api)
	ctx := context.Background()

	if err := d.SendDocument(ctx, 5, "expenses.xlsx", []byte("PK\x03\x04"), "خروجی اکسل"); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if err := d.SendPhoto(ctx, 5, "chart.png", []byte("\x89PNG"), "نمودار"); err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}

	docs := env.telegram.Calls("sendDocument")
	if len(docs) != 1 || docs[0].Params.Get("caption") != "خروجی اکسل" || docs[0].Params.Get("chat_id") != "5" {
		t.Errorf("sendDocument calls = %+v", docs)
	}
	if n := len(env.telegram.Calls("sendPhoto")); n != 1 {
		t.Errorf("sendPhoto calls = %d", n)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := d.SendText(cancelled, 5, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("SendText on cancelled ctx = %v", err)
	}
}
