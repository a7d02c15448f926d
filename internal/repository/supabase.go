package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
)

// expensePageSize stays under PostgREST's default max-rows so a page is
// never silently truncated by the server.
const expensePageSize = 1000

// SupabaseRepository stores the ledger in Supabase tables through PostgREST.
// Conditional updates filter on the old value and count the returned rows,
// which gives the same compare-and-set guarantee as the SQLite store.
// DeleteUserLedger issues two requests and is not transactional.
type SupabaseRepository struct {
	client   *supabase.Client
	logger   *slog.Logger
	pageSize int
}

var _ Store = (*SupabaseRepository)(nil)

type budgetRow struct {
	UserID       int64           `json:"user_id"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	Amount       decimal.Decimal `json:"amount"`
	AlertRatchet int             `json:"alert_ratchet"`
}

type conversationRow struct {
	UserID        int64  `json:"user_id"`
	LastExpenseID string `json:"last_expense_id"`
	model.PendingRecord
}

func NewSupabaseRepository(url, key string, logger *slog.Logger) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, err
	}

	return &SupabaseRepository{
		client:   client,
		logger:   applog.WithComponent(logger, applog.ComponentStorage),
		pageSize: expensePageSize,
	}, nil
}

func (r *SupabaseRepository) Close() error { return nil }

func (r *SupabaseRepository) EnsureUser(ctx context.Context, user *model.User) (bool, error) {
	if _, err := r.GetUser(ctx, user.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return false, err
	}

	row := *user
	row.JoinedAt = row.JoinedAt.UTC()
	row.LastObservedCycle = 0
	_, _, err := r.client.From("users").Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return true, nil
}

func (r *SupabaseRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	data, _, err := r.client.From("users").
		Select("*", "", false).
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var users []model.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	if len(users) == 0 {
		return nil, model.ErrNotFound
	}
	return &users[0], nil
}

func (r *SupabaseRepository) AdvanceObservedCycle(ctx context.Context, userID int64, from, to int) (bool, error) {
	data, _, err := r.client.From("users").
		Update(map[string]any{"last_observed_cycle": to}, "representation", "").
		Eq("user_id", formatID(userID)).
		Eq("last_observed_cycle", strconv.Itoa(from)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to advance observed cycle: %w", err)
	}
	return singleRow(data)
}

func (r *SupabaseRepository) CountUsers(ctx context.Context) (int64, error) {
	_, count, err := r.client.From("users").Select("user_id", "exact", true).Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *SupabaseRepository) ListUserJoinTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	data, _, err := r.client.From("users").
		Select("joined_at", "", false).
		Gte("joined_at", formatTime(since)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list join times: %w", err)
	}

	var rows []struct {
		JoinedAt time.Time `json:"joined_at"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse join times: %w", err)
	}

	times := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		times = append(times, row.JoinedAt.UTC())
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	return times, nil
}

func (r *SupabaseRepository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	expense.GenerateID()
	row := *expense
	row.CreatedAt = row.CreatedAt.UTC()

	_, _, err := r.client.From("expenses").Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	r.logger.DebugContext(ctx, "expense saved to supabase",
		applog.FieldExpenseID, expense.ID,
		applog.FieldUserID, expense.UserID)
	return nil
}

func (r *SupabaseRepository) GetExpense(ctx context.Context, userID int64, id string) (*model.Expense, error) {
	data, _, err := r.client.From("expenses").
		Select("*", "", false).
		Eq("id", id).
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	var expenses []model.Expense
	if err := json.Unmarshal(data, &expenses); err != nil {
		return nil, fmt.Errorf("failed to parse expense: %w", err)
	}
	if len(expenses) == 0 {
		return nil, model.ErrNotFound
	}
	return &expenses[0], nil
}

func (r *SupabaseRepository) UpdateExpenseField(ctx context.Context, userID int64, id string, field model.ExpenseField, value string) error {
	if !field.Valid() {
		return model.ErrInvalidField
	}

	data, _, err := r.client.From("expenses").
		Update(map[string]any{string(field): value}, "representation", "").
		Eq("id", id).
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update expense %s: %w", field, err)
	}
	ok, err := singleRow(data)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotFound
	}
	return nil
}

func (r *SupabaseRepository) DeleteExpense(ctx context.Context, userID int64, id string) (bool, error) {
	data, _, err := r.client.From("expenses").
		Delete("representation", "").
		Eq("id", id).
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	return singleRow(data)
}

// ListExpenses pages through the rows in created_at order until a short page
// comes back.
func (r *SupabaseRepository) ListExpenses(ctx context.Context, userID int64, filter model.ExpenseFilter) ([]model.Expense, error) {
	var expenses []model.Expense
	for offset := 0; ; offset += r.pageSize {
		query := r.client.From("expenses").
			Select("*", "", false).
			Eq("user_id", formatID(userID))

		// Filters are keyed by column, so two bounds on created_at go in one and=().
		switch {
		case filter.From != nil && filter.To != nil:
			query = query.And(fmt.Sprintf(`created_at.gte."%s",created_at.lt."%s"`,
				formatTime(*filter.From), formatTime(*filter.To)), "")
		case filter.From != nil:
			query = query.Gte("created_at", formatTime(*filter.From))
		case filter.To != nil:
			query = query.Lt("created_at", formatTime(*filter.To))
		}

		data, _, err := query.
			Order("created_at", &postgrest.OrderOpts{Ascending: true}).
			Order("id", &postgrest.OrderOpts{Ascending: true}).
			Range(offset, offset+r.pageSize-1, "").
			Execute()
		if err != nil {
			return nil, fmt.Errorf("failed to get expenses: %w", err)
		}

		var page []model.Expense
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse expenses: %w", err)
		}
		expenses = append(expenses, page...)
		if len(page) < r.pageSize {
			break
		}
	}

	for i := range expenses {
		expenses[i].CreatedAt = expenses[i].CreatedAt.UTC()
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].CreatedAt.Before(expenses[j].CreatedAt)
	})
	return expenses, nil
}

func (r *SupabaseRepository) CountExpenses(ctx context.Context) (int64, error) {
	_, count, err := r.client.From("expenses").Select("id", "exact", true).Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return count, nil
}

func (r *SupabaseRepository) UpsertBudget(ctx context.Context, budget *model.BudgetCycle) error {
	row := budgetRow{
		UserID: budget.UserID,
		Year:   budget.Cycle.Year,
		Month:  budget.Cycle.Month,
		Amount: budget.Amount,
	}
	_, _, err := r.client.From("budgets").Insert(row, true, "user_id,year,month", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	budget.AlertRatchet = model.AlertNone
	return nil
}

func (r *SupabaseRepository) GetBudget(ctx context.Context, userID int64, c cycle.Cycle) (*model.BudgetCycle, error) {
	data, _, err := r.client.From("budgets").
		Select("*", "", false).
		Eq("user_id", formatID(userID)).
		Eq("year", strconv.Itoa(c.Year)).
		Eq("month", strconv.Itoa(c.Month)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	var rows []budgetRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse budget: %w", err)
	}
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}

	level, err := model.ParseAlertLevel(rows[0].AlertRatchet)
	if err != nil {
		return nil, err
	}
	return &model.BudgetCycle{UserID: userID, Cycle: c, Amount: rows[0].Amount, AlertRatchet: level}, nil
}

func (r *SupabaseRepository) AdvanceAlertRatchet(ctx context.Context, userID int64, c cycle.Cycle, from, to model.AlertLevel) (bool, error) {
	data, _, err := r.client.From("budgets").
		Update(map[string]any{"alert_ratchet": int(to)}, "representation", "").
		Eq("user_id", formatID(userID)).
		Eq("year", strconv.Itoa(c.Year)).
		Eq("month", strconv.Itoa(c.Month)).
		Eq("alert_ratchet", strconv.Itoa(int(from))).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to advance alert ratchet: %w", err)
	}
	return singleRow(data)
}

func (r *SupabaseRepository) GetConversation(ctx context.Context, userID int64) (*model.ConversationState, error) {
	data, _, err := r.client.From("conversation_state").
		Select("*", "", false).
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}

	var rows []conversationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse conversation state: %w", err)
	}

	state := &model.ConversationState{UserID: userID, Pending: model.Idle{}}
	if len(rows) == 0 {
		return state, nil
	}

	pending, err := rows[0].PendingRecord.Decode()
	if err != nil {
		return nil, err
	}
	state.Pending = pending
	state.LastExpenseID = rows[0].LastExpenseID
	return state, nil
}

func (r *SupabaseRepository) SetPendingOperation(ctx context.Context, userID int64, op model.PendingOperation) error {
	record := model.EncodePending(op)
	row := map[string]any{
		"user_id":            userID,
		"pending_kind":       record.Kind,
		"pending_expense_id": record.ExpenseID,
		"pending_field":      record.Field,
	}
	_, _, err := r.client.From("conversation_state").Insert(row, true, "user_id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to set pending operation: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) SetLastExpense(ctx context.Context, userID int64, expenseID string) error {
	row := map[string]any{
		"user_id":         userID,
		"last_expense_id": expenseID,
	}
	_, _, err := r.client.From("conversation_state").Insert(row, true, "user_id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to set last expense: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteUserLedger(ctx context.Context, userID int64) (model.ResetResult, error) {
	var result model.ResetResult

	data, _, err := r.client.From("expenses").
		Delete("representation", "").
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return result, fmt.Errorf("failed to delete expenses: %w", err)
	}
	if result.Expenses, err = countRows(data); err != nil {
		return result, err
	}

	data, _, err = r.client.From("budgets").
		Delete("representation", "").
		Eq("user_id", formatID(userID)).
		Execute()
	if err != nil {
		return result, fmt.Errorf("failed to delete budgets: %w", err)
	}
	if result.Budgets, err = countRows(data); err != nil {
		return result, err
	}
	return result, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func countRows(data []byte) (int64, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return int64(len(rows)), nil
}

func singleRow(data []byte) (bool, error) {
	n, err := countRows(data)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}
