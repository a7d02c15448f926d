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

// EvaluateAlerts checks the user's spend in c against its budget and returns
// the newly crossed threshold, if any.
func (s *ExpenseTracker) EvaluateAlerts(ctx context.Context, userID int64, c cycle.Cycle) (*model.AlertEvent, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.evaluateAlerts(ctx, userID, c)
}

// evaluateAlerts requires the user lock. The ratchet is advanced with a
// compare-and-set before the event is returned, so a stale reader can never
// announce the same threshold twice.
func (s *ExpenseTracker) evaluateAlerts(ctx context.Context, userID int64, c cycle.Cycle) (*model.AlertEvent, error) {
	budget, err := s.repo.GetBudget(ctx, userID, c)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	spent, err := s.spentIn(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	percent := percentOf(spent, budget.Amount)

	for _, level := range model.AlertThresholds {
		if budget.AlertRatchet >= level {
			return nil, nil
		}
		if percent.LessThan(decimal.NewFromInt(int64(level))) {
			continue
		}

		advanced, err := s.repo.AdvanceAlertRatchet(ctx, userID, c, budget.AlertRatchet, level)
		if err != nil {
			return nil, fmt.Errorf("failed to advance alert ratchet: %w", err)
		}
		if !advanced {
			// Someone else moved the ratchet or replaced the budget; their
			// evaluation owns the announcement.
			return nil, nil
		}

		s.logger.InfoContext(ctx, "budget threshold crossed",
			applog.FieldUserID, userID,
			applog.FieldCycle, c.String(),
			applog.FieldLevel, int(level))
		return &model.AlertEvent{
			UserID:  userID,
			Cycle:   c,
			Level:   level,
			Budget:  budget.Amount,
			Spent:   spent,
			Percent: percent,
		}, nil
	}
	return nil, nil
}
