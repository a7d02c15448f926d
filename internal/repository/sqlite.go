package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	"github.com/bahmanfallahi/jibjib/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the ledger in a local SQLite file. Timestamps are
// kept as UTC unix nanoseconds so range filters compare integers.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) EnsureUser(ctx context.Context, user *model.User) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, first_name, username, joined_at, last_observed_cycle)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT (user_id) DO NOTHING`,
		user.ID, user.FirstName, user.Username, user.JoinedAt.UTC().UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to ensure user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to ensure user: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var (
		u        model.User
		joinedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, first_name, username, joined_at, last_observed_cycle
		FROM users WHERE user_id = ?`, userID).
		Scan(&u.ID, &u.FirstName, &u.Username, &joinedAt, &u.LastObservedCycle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.JoinedAt = fromNanos(joinedAt)
	return &u, nil
}

func (r *SQLiteRepository) AdvanceObservedCycle(ctx context.Context, userID int64, from, to int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_observed_cycle = ?
		WHERE user_id = ? AND last_observed_cycle = ?`, to, userID, from)
	if err != nil {
		return false, fmt.Errorf("failed to advance observed cycle: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListUserJoinTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT joined_at FROM users WHERE joined_at >= ? ORDER BY joined_at DESC`,
		since.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to list join times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan join time: %w", err)
		}
		times = append(times, fromNanos(ns))
	}
	return times, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	expense.GenerateID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, amount, category, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.UserID, expense.Amount.String(), string(expense.Category),
		expense.Note, expense.CreatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID int64, id string) (*model.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, category, note, created_at
		FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpenseField(ctx context.Context, userID int64, id string, field model.ExpenseField, value string) error {
	var query string
	switch field {
	case model.FieldAmount:
		query = `UPDATE expenses SET amount = ? WHERE id = ? AND user_id = ?`
	case model.FieldCategory:
		query = `UPDATE expenses SET category = ? WHERE id = ? AND user_id = ?`
	case model.FieldNote:
		query = `UPDATE expenses SET note = ? WHERE id = ? AND user_id = ?`
	default:
		return model.ErrInvalidField
	}

	res, err := r.db.ExecContext(ctx, query, value, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update expense %s: %w", field, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("failed to update expense %s: %w", field, err)
	}
	if !ok {
		return model.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID int64, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, filter model.ExpenseFilter) ([]model.Expense, error) {
	query := `SELECT id, user_id, amount, category, note, created_at FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if filter.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.From.UTC().UnixNano())
	}
	if filter.To != nil {
		query += ` AND created_at < ?`
		args = append(args, filter.To.UTC().UnixNano())
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expenses: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, budget *model.BudgetCycle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, year, month, amount, alert_ratchet)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			amount = excluded.amount,
			alert_ratchet = 0`,
		budget.UserID, budget.Cycle.Year, budget.Cycle.Month, budget.Amount.String())
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	budget.AlertRatchet = model.AlertNone
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID int64, c cycle.Cycle) (*model.BudgetCycle, error) {
	var (
		amount  decimal.Decimal
		ratchet int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT amount, alert_ratchet FROM budgets
		WHERE user_id = ? AND year = ? AND month = ?`, userID, c.Year, c.Month).
		Scan(&amount, &ratchet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	level, err := model.ParseAlertLevel(ratchet)
	if err != nil {
		return nil, err
	}
	return &model.BudgetCycle{UserID: userID, Cycle: c, Amount: amount, AlertRatchet: level}, nil
}

func (r *SQLiteRepository) AdvanceAlertRatchet(ctx context.Context, userID int64, c cycle.Cycle, from, to model.AlertLevel) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET alert_ratchet = ?
		WHERE user_id = ? AND year = ? AND month = ? AND alert_ratchet = ?`,
		int(to), userID, c.Year, c.Month, int(from))
	if err != nil {
		return false, fmt.Errorf("failed to advance alert ratchet: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) GetConversation(ctx context.Context, userID int64) (*model.ConversationState, error) {
	var (
		state  = model.ConversationState{UserID: userID, Pending: model.Idle{}}
		record model.PendingRecord
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT last_expense_id, pending_kind, pending_expense_id, pending_field
		FROM conversation_state WHERE user_id = ?`, userID).
		Scan(&state.LastExpenseID, &record.Kind, &record.ExpenseID, &record.Field)
	if errors.Is(err, sql.ErrNoRows) {
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}

	pending, err := record.Decode()
	if err != nil {
		return nil, err
	}
	state.Pending = pending
	return &state, nil
}

func (r *SQLiteRepository) SetPendingOperation(ctx context.Context, userID int64, op model.PendingOperation) error {
	record := model.EncodePending(op)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_state (user_id, pending_kind, pending_expense_id, pending_field)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			pending_kind = excluded.pending_kind,
			pending_expense_id = excluded.pending_expense_id,
			pending_field = excluded.pending_field`,
		userID, record.Kind, record.ExpenseID, record.Field)
	if err != nil {
		return fmt.Errorf("failed to set pending operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetLastExpense(ctx context.Context, userID int64, expenseID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_state (user_id, last_expense_id)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET last_expense_id = excluded.last_expense_id`,
		userID, expenseID)
	if err != nil {
		return fmt.Errorf("failed to set last expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteUserLedger(ctx context.Context, userID int64) (result model.ResetResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID)
	if err != nil {
		return result, fmt.Errorf("failed to delete expenses: %w", err)
	}
	if result.Expenses, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to delete expenses: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ?`, userID)
	if err != nil {
		return result, fmt.Errorf("failed to delete budgets: %w", err)
	}
	if result.Budgets, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to delete budgets: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit reset: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*model.Expense, error) {
	var (
		e         model.Expense
		category  string
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &category, &e.Note, &createdAt); err != nil {
		return nil, err
	}
	e.Category = model.Category(category)
	e.CreatedAt = fromNanos(createdAt)
	return &e, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
