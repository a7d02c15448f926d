package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/money"
)

// Append stores a new expense, makes it the undo target, clears any pending
// operation and evaluates budget alerts for the cycle the expense falls in.
// Once the expense is stored it is returned even if the follow-up
// bookkeeping fails; those failures are logged.
func (s *ExpenseTracker) Append(ctx context.Context, userID int64, draft model.ExpenseDraft) (*model.Expense, *model.AlertEvent, error) {
	if !draft.Amount.IsPositive() {
		return nil, nil, model.ErrInvalidAmount
	}
	if !draft.Category.Valid() {
		return nil, nil, model.ErrInvalidCategory
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	expense := &model.Expense{
		UserID:    userID,
		Amount:    draft.Amount,
		Category:  draft.Category,
		Note:      strings.TrimSpace(draft.Note),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, nil, fmt.Errorf("failed to save expense: %w", err)
	}

	log := s.logger.With(applog.FieldUserID, userID, applog.FieldExpenseID, expense.ID)
	log.InfoContext(ctx, "expense stored",
		applog.FieldAmount, expense.Amount.String(),
		applog.FieldCategory, string(expense.Category))

	if err := s.repo.SetLastExpense(ctx, userID, expense.ID); err != nil {
		log.ErrorContext(ctx, "failed to record last expense", applog.FieldError, err)
	}
	if err := s.repo.SetPendingOperation(ctx, userID, model.Idle{}); err != nil {
		log.ErrorContext(ctx, "failed to clear pending operation", applog.FieldError, err)
	}

	alert, err := s.evaluateAlerts(ctx, userID, s.cal.At(expense.CreatedAt))
	if err != nil {
		log.ErrorContext(ctx, "failed to evaluate budget alerts", applog.FieldOperation, applog.OpAlert, applog.FieldError, err)
		return expense, nil, nil
	}
	return expense, alert, nil
}

// Edit changes one field of an expense owned by the user.
func (s *ExpenseTracker) Edit(ctx context.Context, userID int64, expenseID string, field model.ExpenseField, raw string) (*model.Expense, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.edit(ctx, userID, expenseID, field, raw)
}

func (s *ExpenseTracker) edit(ctx context.Context, userID int64, expenseID string, field model.ExpenseField, raw string) (*model.Expense, error) {
	value, err := editValue(field, raw)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateExpenseField(ctx, userID, expenseID, field, value); err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to edit expense: %w", err)
	}

	s.logger.InfoContext(ctx, "expense edited",
		applog.FieldUserID, userID,
		applog.FieldExpenseID, expenseID,
		"field", string(field))

	expense, err := s.repo.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload expense: %w", err)
	}
	return expense, nil
}

// editValue validates raw input for field and returns its stored form.
func editValue(field model.ExpenseField, raw string) (string, error) {
	switch field {
	case model.FieldAmount:
		amount, err := money.Parse(raw)
		if err != nil {
			return "", err
		}
		return amount.String(), nil
	case model.FieldCategory:
		category := model.Category(strings.Join(strings.Fields(raw), " "))
		if !category.Valid() {
			return "", model.ErrInvalidCategory
		}
		return string(category), nil
	case model.FieldNote:
		return strings.TrimSpace(raw), nil
	}
	return "", model.ErrInvalidField
}

// Delete removes an expense owned by the user. Deleting something that is
// already gone reports false without an error.
func (s *ExpenseTracker) Delete(ctx context.Context, userID int64, expenseID string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	deleted, err := s.repo.DeleteExpense(ctx, userID, expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	if deleted {
		s.logger.InfoContext(ctx, "expense deleted", applog.FieldUserID, userID, applog.FieldExpenseID, expenseID)
	}
	return deleted, nil
}

// ResetAll irreversibly deletes every expense and budget record of the user.
// confirm must be true; the two-step prompt lives in the transport.
func (s *ExpenseTracker) ResetAll(ctx context.Context, userID int64, confirm bool) (model.ResetResult, error) {
	if !confirm {
		return model.ResetResult{}, model.ErrResetNotConfirmed
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	result, err := s.repo.DeleteUserLedger(ctx, userID)
	if err != nil {
		return model.ResetResult{}, fmt.Errorf("failed to reset ledger: %w", err)
	}
	s.logger.WarnContext(ctx, "ledger reset",
		applog.FieldUserID, userID,
		applog.FieldOperation, applog.OpReset,
		"expenses", result.Expenses,
		"budgets", result.Budgets)
	return result, nil
}

// LastExpense returns the undo target. ErrNotFound covers both "nothing
// recorded yet" and "already deleted".
func (s *ExpenseTracker) LastExpense(ctx context.Context, userID int64) (*model.Expense, error) {
	state, err := s.repo.GetConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}
	if state.LastExpenseID == "" {
		return nil, model.ErrNotFound
	}

	expense, err := s.repo.GetExpense(ctx, userID, state.LastExpenseID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last expense: %w", err)
	}
	return expense, nil
}
