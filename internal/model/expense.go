package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a single ledger entry reported by a user.
type Expense struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Category  Category        `json:"category"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
}

// GenerateID assigns a new UUID unless the expense already has one.
func (e *Expense) GenerateID() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
}

// ExpenseDraft is the user-supplied part of an expense before it is stamped and stored.
type ExpenseDraft struct {
	Amount   decimal.Decimal
	Category Category
	Note     string
}

// ExpenseFilter narrows an expense listing to the half-open range [From, To).
type ExpenseFilter struct {
	From *time.Time
	To   *time.Time
}

// ExpenseField names a column the user may edit after the fact.
type ExpenseField string

const (
	FieldAmount   ExpenseField = "amount"
	FieldCategory ExpenseField = "category"
	FieldNote     ExpenseField = "note"
)

// Valid reports whether f is one of the editable columns.
func (f ExpenseField) Valid() bool {
	switch f {
	case FieldAmount, FieldCategory, FieldNote:
		return true
	}
	return false
}

// ParseExpenseField converts raw callback data into an editable field.
func ParseExpenseField(s string) (ExpenseField, error) {
	f := ExpenseField(s)
	if !f.Valid() {
		return "", ErrInvalidField
	}
	return f, nil
}

// ResetResult counts the rows removed by a ledger reset.
type ResetResult struct {
	Expenses int64
	Budgets  int64
}
