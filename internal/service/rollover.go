package service

import (
	"context"
	"errors"
	"fmt"

	applog "github.com/bahmanfallahi/jibjib/internal/log"
	"github.com/bahmanfallahi/jibjib/internal/model"
)

// CheckRollover runs at the start of every inbound event. It returns a
// summary of the previous cycle exactly once per cycle transition, and
// nothing for a user who has never been observed before.
func (s *ExpenseTracker) CheckRollover(ctx context.Context, userID int64) (*model.RolloverSummary, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	current := s.CurrentCycle()
	index := current.Index()
	last := user.LastObservedCycle

	if last == index {
		return nil, nil
	}
	if last == 0 {
		if _, err := s.repo.AdvanceObservedCycle(ctx, userID, 0, index); err != nil {
			return nil, fmt.Errorf("failed to record first cycle: %w", err)
		}
		return nil, nil
	}

	previous := current.Prev()
	summary := &model.RolloverSummary{PreviousCycle: previous, CurrentCycle: current}

	budget, err := s.repo.GetBudget(ctx, userID, previous)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to get previous budget: %w", err)
	default:
		amount := budget.Amount
		summary.PreviousBudget = &amount
	}

	if summary.PreviousSpent, err = s.spentIn(ctx, userID, previous); err != nil {
		return nil, err
	}

	advanced, err := s.repo.AdvanceObservedCycle(ctx, userID, last, index)
	if err != nil {
		return nil, fmt.Errorf("failed to advance observed cycle: %w", err)
	}
	if !advanced {
		return nil, nil
	}

	s.logger.InfoContext(ctx, "cycle rollover",
		applog.FieldUserID, userID,
		applog.FieldCycle, current.String(),
		"previous_cycle", previous.String())
	return summary, nil
}
