package model

import (
	"errors"
	"testing"
)

func TestPendingRecordDecodeRejectsImpossibleStates(t *testing.T) {
	tests := []struct {
		name   string
		record PendingRecord
	}{
		{"unknown kind", PendingRecord{Kind: "awaiting_coffee"}},
		{"edit without expense", PendingRecord{Kind: "edit_value", Field: "amount"}},
		{"edit with bad field", PendingRecord{Kind: "edit_value", ExpenseID: "e1", Field: "timestamp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.record.Decode(); !errors.Is(err, ErrInvariant) {
				t.Errorf("Decode() error = %v, want ErrInvariant", err)
			}
		})
	}
}

func TestEncodePendingDecodesBack(t *testing.T) {
	ops := []PendingOperation{
		Idle{},
		AwaitingBudgetAmount{},
		AwaitingEditValue{ExpenseID: "e1", Field: FieldNote},
	}
	for _, op := range ops {
		got, err := EncodePending(op).Decode()
		if err != nil {
			t.Fatalf("Decode(%T) error: %v", op, err)
		}
		if got != op {
			t.Errorf("round trip of %#v gave %#v", op, got)
		}
	}

	if got, _ := EncodePending(nil).Decode(); got != (Idle{}) {
		t.Errorf("nil operation decoded as %#v, want Idle", got)
	}
}

func TestConversationStateIsIdle(t *testing.T) {
	if !(ConversationState{}).IsIdle() {
		t.Error("zero state is not idle")
	}
	if (ConversationState{Pending: AwaitingBudgetAmount{}}).IsIdle() {
		t.Error("awaiting budget reported idle")
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"غذا", CategoryFood},
		{"  حمل   و نقل ", CategoryTransport},
		{"crypto", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseExpenseField(t *testing.T) {
	if f, err := ParseExpenseField("category"); err != nil || f != FieldCategory {
		t.Errorf("ParseExpenseField(category) = %q, %v", f, err)
	}
	if _, err := ParseExpenseField("user_id"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseExpenseField(user_id) error = %v, want validation error", err)
	}
}

func TestParseAlertLevel(t *testing.T) {
	if l, err := ParseAlertLevel(80); err != nil || l != AlertWarning {
		t.Errorf("ParseAlertLevel(80) = %v, %v", l, err)
	}
	if _, err := ParseAlertLevel(60); !errors.Is(err, ErrInvariant) {
		t.Errorf("ParseAlertLevel(60) error = %v, want ErrInvariant", err)
	}
}
