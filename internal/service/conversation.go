package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/money"
)

// PendingOutcome says what happened to a text answering a pending prompt.
type PendingOutcome int

const (
	// PendingNone means nothing was pending; the text is a new expense.
	PendingNone PendingOutcome = iota
	PendingBudgetSet
	// PendingBudgetInvalid keeps the budget prompt open.
	PendingBudgetInvalid
	PendingEditApplied
	PendingEditInvalid
	PendingEditMissing
)

// PendingResult carries the outcome and whatever record it produced.
type PendingResult struct {
	Outcome PendingOutcome
	Budget  *model.BudgetCycle
	Expense *model.Expense
	Field   model.ExpenseField
	// Err is the validation error behind an invalid outcome.
	Err error
}

// BeginBudgetPrompt makes the user's next text the budget amount,
// discarding any other pending operation.
func (s *ExpenseTracker) BeginBudgetPrompt(ctx context.Context, userID int64) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.repo.SetPendingOperation(ctx, userID, model.AwaitingBudgetAmount{}); err != nil {
		return fmt.Errorf("failed to start budget prompt: %w", err)
	}
	return nil
}

// BeginEdit makes the user's next text the new value of field on the expense.
func (s *ExpenseTracker) BeginEdit(ctx context.Context, userID int64, expenseID string, field model.ExpenseField) error {
	if !field.Valid() {
		return model.ErrInvalidField
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.repo.GetExpense(ctx, userID, expenseID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get expense: %w", err)
	}

	op := model.AwaitingEditValue{ExpenseID: expenseID, Field: field}
	if err := s.repo.SetPendingOperation(ctx, userID, op); err != nil {
		return fmt.Errorf("failed to start edit: %w", err)
	}
	return nil
}

// Cancel clears the pending operation and reports whether one was open.
func (s *ExpenseTracker) Cancel(ctx context.Context, userID int64) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	state, err := s.repo.GetConversation(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get conversation state: %w", err)
	}
	if state.IsIdle() {
		return false, nil
	}
	if err := s.repo.SetPendingOperation(ctx, userID, model.Idle{}); err != nil {
		return false, fmt.Errorf("failed to cancel pending operation: %w", err)
	}
	return true, nil
}

// Pending returns the user's open operation.
func (s *ExpenseTracker) Pending(ctx context.Context, userID int64) (model.PendingOperation, error) {
	state, err := s.repo.GetConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}
	return state.Pending, nil
}

// ResolvePending feeds text to the open prompt. An invalid budget amount
// leaves the budget prompt open; an edit prompt is closed after any answer.
func (s *ExpenseTracker) ResolvePending(ctx context.Context, userID int64, text string) (*PendingResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	state, err := s.repo.GetConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}

	switch op := state.Pending.(type) {
	case model.AwaitingBudgetAmount:
		return s.resolveBudget(ctx, userID, text)
	case model.AwaitingEditValue:
		return s.resolveEdit(ctx, userID, op, text)
	default:
		return &PendingResult{Outcome: PendingNone}, nil
	}
}

func (s *ExpenseTracker) resolveBudget(ctx context.Context, userID int64, text string) (*PendingResult, error) {
	amount, err := money.Parse(text)
	if err != nil {
		return &PendingResult{Outcome: PendingBudgetInvalid, Err: err}, nil
	}

	budget, err := s.setBudget(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPendingOperation(ctx, userID, model.Idle{}); err != nil {
		return nil, fmt.Errorf("failed to clear budget prompt: %w", err)
	}
	return &PendingResult{Outcome: PendingBudgetSet, Budget: budget}, nil
}

func (s *ExpenseTracker) resolveEdit(ctx context.Context, userID int64, op model.AwaitingEditValue, text string) (*PendingResult, error) {
	expense, editErr := s.edit(ctx, userID, op.ExpenseID, op.Field, text)

	if err := s.repo.SetPendingOperation(ctx, userID, model.Idle{}); err != nil {
		return nil, fmt.Errorf("failed to clear edit prompt: %w", err)
	}

	result := &PendingResult{Field: op.Field, Expense: expense, Err: editErr}
	switch {
	case editErr == nil:
		result.Outcome = PendingEditApplied
	case errors.Is(editErr, model.ErrValidation):
		result.Outcome = PendingEditInvalid
	case errors.Is(editErr, model.ErrNotFound):
		result.Outcome = PendingEditMissing
	default:
		return nil, editErr
	}
	return result, nil
}
