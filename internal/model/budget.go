package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/cycle"
)

// BudgetCycle is a user's spending limit for one cycle. A missing record
// means no budget is configured.
type BudgetCycle struct {
	UserID int64
	Cycle  cycle.Cycle
	Amount decimal.Decimal
	// AlertRatchet is the highest threshold already announced for this record.
	// It only grows until the record is replaced.
	AlertRatchet AlertLevel
}

// AlertLevel is a spend threshold in percent of the budget.
type AlertLevel int

const (
	AlertNone      AlertLevel = 0
	AlertHalf      AlertLevel = 50
	AlertWarning   AlertLevel = 80
	AlertExhausted AlertLevel = 100
)

// AlertThresholds lists the thresholds from highest to lowest, the order they are checked in.
var AlertThresholds = []AlertLevel{AlertExhausted, AlertWarning, AlertHalf}

// Valid reports whether l is a level the ratchet can hold.
func (l AlertLevel) Valid() bool {
	switch l {
	case AlertNone, AlertHalf, AlertWarning, AlertExhausted:
		return true
	}
	return false
}

// ParseAlertLevel validates a stored ratchet value.
func ParseAlertLevel(v int) (AlertLevel, error) {
	l := AlertLevel(v)
	if !l.Valid() {
		return AlertNone, fmt.Errorf("%w: alert ratchet %d", ErrInvariant, v)
	}
	return l, nil
}

// AlertEvent is a threshold crossing that should be announced to the user.
type AlertEvent struct {
	UserID  int64
	Cycle   cycle.Cycle
	Level   AlertLevel
	Budget  decimal.Decimal
	Spent   decimal.Decimal
	Percent decimal.Decimal
}

// RolloverSummary describes the cycle that just ended for a user.
type RolloverSummary struct {
	PreviousCycle cycle.Cycle
	CurrentCycle  cycle.Cycle
	// PreviousBudget is nil when no budget was configured for the previous cycle.
	PreviousBudget *decimal.Decimal
	PreviousSpent  decimal.Decimal
}

// Remaining returns budget minus spend, or false when there was no budget.
func (s RolloverSummary) Remaining() (decimal.Decimal, bool) {
	if s.PreviousBudget == nil {
		return decimal.Zero, false
	}
	return s.PreviousBudget.Sub(s.PreviousSpent), true
}
