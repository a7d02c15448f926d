package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/model"
)

// ReportType selects the report window.
type ReportType int

const (
	// DailyReport covers the current local day.
	DailyReport ReportType = iota
	// WeeklyReport covers the last seven local days, today included.
	WeeklyReport
)

// CategoryTotal is one line of a report.
type CategoryTotal struct {
	Category model.Category
	Amount   decimal.Decimal
	Share    decimal.Decimal // percent of the report total
}

// Report is spend grouped by category inside [From, To).
type Report struct {
	Type       ReportType
	From       time.Time
	To         time.Time
	Total      decimal.Decimal
	Categories []CategoryTotal
}

// Empty reports whether no expense fell in the window.
func (r *Report) Empty() bool {
	return len(r.Categories) == 0
}

func (s *ExpenseTracker) Report(ctx context.Context, userID int64, kind ReportType) (*Report, error) {
	from, to := s.reportWindow(kind)
	expenses, err := s.repo.ListExpenses(ctx, userID, model.ExpenseFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}

	report := &Report{Type: kind, From: from, To: to, Total: decimal.Zero}
	report.Categories, report.Total = totalsByCategory(expenses)
	return report, nil
}

func (s *ExpenseTracker) reportWindow(kind ReportType) (from, to time.Time) {
	now := s.now().In(s.cal.Location())
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to = startOfDay.AddDate(0, 0, 1)
	from = startOfDay
	if kind == WeeklyReport {
		from = startOfDay.AddDate(0, 0, -6)
	}
	return from.UTC(), to.UTC()
}

// totalsByCategory groups amounts and sorts by total descending.
func totalsByCategory(expenses []model.Expense) ([]CategoryTotal, decimal.Decimal) {
	sums := make(map[model.Category]decimal.Decimal)
	total := decimal.Zero
	for _, e := range expenses {
		sums[e.Category] = sums[e.Category].Add(e.Amount)
		total = total.Add(e.Amount)
	}

	stats := make([]CategoryTotal, 0, len(sums))
	for category, amount := range sums {
		stats = append(stats, CategoryTotal{
			Category: category,
			Amount:   amount,
			Share:    percentOf(amount, total),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if !stats[i].Amount.Equal(stats[j].Amount) {
			return stats[i].Amount.GreaterThan(stats[j].Amount)
		}
		return stats[i].Category < stats[j].Category
	})
	return stats, total
}

// CategoryTotals groups an arbitrary expense list, for export rendering.
func CategoryTotals(expenses []model.Expense) []CategoryTotal {
	stats, _ := totalsByCategory(expenses)
	return stats
}

// ExportExpenses returns the user's whole ledger in creation order.
func (s *ExpenseTracker) ExportExpenses(ctx context.Context, userID int64) ([]model.Expense, error) {
	expenses, err := s.repo.ListExpenses(ctx, userID, model.ExpenseFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses for export: %w", err)
	}
	return expenses, nil
}

// DailySignups is the number of users who joined on a local day.
type DailySignups struct {
	Day   string // YYYY-MM-DD in the cycle calendar's zone
	Count int
}

type AdminStats struct {
	Users    int64
	Expenses int64
	Signups  []DailySignups
}

const signupDays = 5

// AdminStats aggregates the whole store. Signups lists the most recent days
// that had at least one new user, newest first.
func (s *ExpenseTracker) AdminStats(ctx context.Context) (*AdminStats, error) {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	expenses, err := s.repo.CountExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count expenses: %w", err)
	}
	joins, err := s.repo.ListUserJoinTimes(ctx, time.Unix(0, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list signups: %w", err)
	}

	counts := make(map[string]int)
	for _, t := range joins {
		counts[t.In(s.cal.Location()).Format(time.DateOnly)]++
	}
	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if len(days) > signupDays {
		days = days[:signupDays]
	}

	stats := &AdminStats{Users: users, Expenses: expenses}
	for _, day := range days {
		stats.Signups = append(stats.Signups, DailySignups{Day: day, Count: counts[day]})
	}
	return stats, nil
}
