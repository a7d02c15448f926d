package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/userlock"
)

// ExpenseTracker is the budget-cycle ledger engine. All state-changing
// methods serialize per user; reads that only aggregate do not lock.
type ExpenseTracker struct {
	repo   Repository
	cal    cycle.Calendar
	locks  *userlock.Locks
	logger *slog.Logger
	now    func() time.Time
}

// Repository is the storage the tracker needs.
type Repository interface {
	EnsureUser(ctx context.Context, user *model.User) (bool, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	AdvanceObservedCycle(ctx context.Context, userID int64, from, to int) (bool, error)
	CountUsers(ctx context.Context) (int64, error)
	ListUserJoinTimes(ctx context.Context, since time.Time) ([]time.Time, error)

	CreateExpense(ctx context.Context, expense *model.Expense) error
	GetExpense(ctx context.Context, userID int64, id string) (*model.Expense, error)
	UpdateExpenseField(ctx context.Context, userID int64, id string, field model.ExpenseField, value string) error
	DeleteExpense(ctx context.Context, userID int64, id string) (bool, error)
	ListExpenses(ctx context.Context, userID int64, filter model.ExpenseFilter) ([]model.Expense, error)
	CountExpenses(ctx context.Context) (int64, error)

	UpsertBudget(ctx context.Context, budget *model.BudgetCycle) error
	GetBudget(ctx context.Context, userID int64, c cycle.Cycle) (*model.BudgetCycle, error)
	AdvanceAlertRatchet(ctx context.Context, userID int64, c cycle.Cycle, from, to model.AlertLevel) (bool, error)

	GetConversation(ctx context.Context, userID int64) (*model.ConversationState, error)
	SetPendingOperation(ctx context.Context, userID int64, op model.PendingOperation) error
	SetLastExpense(ctx context.Context, userID int64, expenseID string) error

	DeleteUserLedger(ctx context.Context, userID int64) (model.ResetResult, error)
}

// NewExpenseTracker builds the engine. A nil logger falls back to slog.Default.
func NewExpenseTracker(repo Repository, cal cycle.Calendar, logger *slog.Logger) *ExpenseTracker {
	return &ExpenseTracker{
		repo:   repo,
		cal:    cal,
		locks:  userlock.New(),
		logger: applog.WithComponent(logger, applog.ComponentLedger),
		now:    time.Now,
	}
}

// Calendar exposes the cycle calendar for presentation code.
func (s *ExpenseTracker) Calendar() cycle.Calendar {
	return s.cal
}

// CurrentCycle is the cycle containing the tracker's clock.
func (s *ExpenseTracker) CurrentCycle() cycle.Cycle {
	return s.cal.At(s.now())
}

// Register records a user on first contact. JoinedAt defaults to now.
func (s *ExpenseTracker) Register(ctx context.Context, user *model.User) (bool, error) {
	if user.JoinedAt.IsZero() {
		user.JoinedAt = s.now().UTC()
	}
	created, err := s.repo.EnsureUser(ctx, user)
	if err != nil {
		return false, fmt.Errorf("failed to register user: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, "user registered", applog.FieldUserID, user.ID)
	}
	return created, nil
}

// spentIn sums the user's expenses inside the cycle's range.
func (s *ExpenseTracker) spentIn(ctx context.Context, userID int64, c cycle.Cycle) (decimal.Decimal, error) {
	start, end := s.cal.Range(c)
	expenses, err := s.repo.ListExpenses(ctx, userID, model.ExpenseFilter{From: &start, To: &end})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get expenses for %s: %w", c, err)
	}

	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	if total.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative spend %s in %s for user %d", model.ErrInvariant, total, c, userID)
	}
	return total, nil
}

// percentOf returns spent as a percentage of budget; zero when budget <= 0.
func percentOf(spent, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	return spent.Mul(decimal.NewFromInt(100)).Div(budget)
}
