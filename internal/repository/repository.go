package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	"github.com/bahmanfallahi/jibjib/internal/model"
)

// Repository is the durable ledger store: users, expenses, budget cycle
// records and conversation state. Every method is atomic for the record it
// touches; nothing spans records except DeleteUserLedger.
type Repository interface {
	// Users
	EnsureUser(ctx context.Context, user *model.User) (created bool, err error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	// AdvanceObservedCycle moves last_observed_cycle from one value to another
	// and reports false if another writer got there first.
	AdvanceObservedCycle(ctx context.Context, userID int64, from, to int) (bool, error)
	CountUsers(ctx context.Context) (int64, error)
	ListUserJoinTimes(ctx context.Context, since time.Time) ([]time.Time, error)

	// Expenses
	CreateExpense(ctx context.Context, expense *model.Expense) error
	GetExpense(ctx context.Context, userID int64, id string) (*model.Expense, error)
	UpdateExpenseField(ctx context.Context, userID int64, id string, field model.ExpenseField, value string) error
	DeleteExpense(ctx context.Context, userID int64, id string) (bool, error)
	ListExpenses(ctx context.Context, userID int64, filter model.ExpenseFilter) ([]model.Expense, error)
	CountExpenses(ctx context.Context) (int64, error)

	// Budgets
	UpsertBudget(ctx context.Context, budget *model.BudgetCycle) error
	GetBudget(ctx context.Context, userID int64, c cycle.Cycle) (*model.BudgetCycle, error)
	// AdvanceAlertRatchet is a compare-and-set on the record's ratchet.
	AdvanceAlertRatchet(ctx context.Context, userID int64, c cycle.Cycle, from, to model.AlertLevel) (bool, error)

	// Conversation state
	GetConversation(ctx context.Context, userID int64) (*model.ConversationState, error)
	SetPendingOperation(ctx context.Context, userID int64, op model.PendingOperation) error
	SetLastExpense(ctx context.Context, userID int64, expenseID string) error

	DeleteUserLedger(ctx context.Context, userID int64) (model.ResetResult, error)
}

// Store is a Repository that owns a connection.
type Store interface {
	Repository
	Close() error
}

// Backend selects the storage technology.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendSupabase Backend = "supabase"
)

// Options configures Open.
type Options struct {
	Backend     Backend
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
	Logger      *slog.Logger
}

// Open builds the store for the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite:
		return NewSQLiteRepository(opts.SQLitePath)
	case BackendSupabase:
		return NewSupabaseRepository(opts.SupabaseURL, opts.SupabaseKey, opts.Logger)
	default:
		return nil, fmt.Errorf("unsupported store backend: %q", opts.Backend)
	}
}
