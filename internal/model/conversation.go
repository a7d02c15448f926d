package model

import "fmt"

// PendingOperation is the single interactive step a user may have open.
// The set of implementations is closed: Idle, AwaitingBudgetAmount and
// AwaitingEditValue.
type PendingOperation interface {
	isPendingOperation()
}

// Idle means no operation is pending.
type Idle struct{}

// AwaitingBudgetAmount means the next text is the budget for the current cycle.
type AwaitingBudgetAmount struct{}

// AwaitingEditValue means the next text is the new value of Field on ExpenseID.
type AwaitingEditValue struct {
	ExpenseID string
	Field     ExpenseField
}

func (Idle) isPendingOperation()                 {}
func (AwaitingBudgetAmount) isPendingOperation() {}
func (AwaitingEditValue) isPendingOperation()    {}

// ConversationState is the per-user conversational slot.
type ConversationState struct {
	UserID  int64
	Pending PendingOperation
	// LastExpenseID is a weak reference used by undo; the expense may be gone.
	LastExpenseID string
}

// IsIdle reports whether nothing is pending.
func (s ConversationState) IsIdle() bool {
	_, idle := s.Pending.(Idle)
	return s.Pending == nil || idle
}

// PendingRecord is the flat storage form of a PendingOperation.
type PendingRecord struct {
	Kind      string `json:"pending_kind"`
	ExpenseID string `json:"pending_expense_id"`
	Field     string `json:"pending_field"`
}

const (
	pendingKindNone         = ""
	pendingKindBudgetAmount = "budget_amount"
	pendingKindEditValue    = "edit_value"
)

// EncodePending flattens op for storage. A nil op encodes as Idle.
func EncodePending(op PendingOperation) PendingRecord {
	switch op := op.(type) {
	case AwaitingBudgetAmount:
		return PendingRecord{Kind: pendingKindBudgetAmount}
	case AwaitingEditValue:
		return PendingRecord{Kind: pendingKindEditValue, ExpenseID: op.ExpenseID, Field: string(op.Field)}
	default:
		return PendingRecord{Kind: pendingKindNone}
	}
}

// Decode rebuilds the operation, rejecting combinations no code path can write.
func (r PendingRecord) Decode() (PendingOperation, error) {
	switch r.Kind {
	case pendingKindNone:
		return Idle{}, nil
	case pendingKindBudgetAmount:
		return AwaitingBudgetAmount{}, nil
	case pendingKindEditValue:
		field := ExpenseField(r.Field)
		if r.ExpenseID == "" || !field.Valid() {
			return nil, fmt.Errorf("%w: edit state with expense %q field %q", ErrInvariant, r.ExpenseID, r.Field)
		}
		return AwaitingEditValue{ExpenseID: r.ExpenseID, Field: field}, nil
	}
	return nil, fmt.Errorf("%w: unknown pending kind %q", ErrInvariant, r.Kind)
}
