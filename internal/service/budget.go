package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
)

// SetBudget sets or replaces the budget of the current cycle. Replacing a
// budget resets its alert ratchet so every threshold can fire again.
func (s *ExpenseTracker) SetBudget(ctx context.Context, userID int64, amount decimal.Decimal) (*model.BudgetCycle, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.setBudget(ctx, userID, amount)
}

func (s *ExpenseTracker) setBudget(ctx context.Context, userID int64, amount decimal.Decimal) (*model.BudgetCycle, error) {
	if !amount.IsPositive() {
		return nil, model.ErrInvalidAmount
	}

	budget := &model.BudgetCycle{UserID: userID, Cycle: s.CurrentCycle(), Amount: amount}
	if err := s.repo.UpsertBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("failed to save budget: %w", err)
	}

	s.logger.InfoContext(ctx, "budget set",
		applog.FieldUserID, userID,
		applog.FieldCycle, budget.Cycle.String(),
		applog.FieldAmount, amount.String())
	return budget, nil
}

// BudgetStatus is the current cycle's budget against spend.
type BudgetStatus struct {
	Cycle cycle.Cycle
	// Budget is nil when none is configured for the cycle.
	Budget    *decimal.Decimal
	Spent     decimal.Decimal
	Percent   decimal.Decimal
	Remaining decimal.Decimal
}

// HasBudget reports whether a budget is configured.
func (b BudgetStatus) HasBudget() bool {
	return b.Budget != nil
}

func (s *ExpenseTracker) BudgetStatus(ctx context.Context, userID int64) (*BudgetStatus, error) {
	current := s.CurrentCycle()
	status := &BudgetStatus{Cycle: current}

	budget, err := s.repo.GetBudget(ctx, userID, current)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return status, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	spent, err := s.spentIn(ctx, userID, current)
	if err != nil {
		return nil, err
	}

	amount := budget.Amount
	status.Budget = &amount
	status.Spent = spent
	status.Percent = percentOf(spent, amount)
	status.Remaining = amount.Sub(spent)
	return status, nil
}
