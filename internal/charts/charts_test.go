package charts

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func expense(amount int64, category model.Category, at time.Time) model.Expense {
	return model.Expense{Amount: decimal.NewFromInt(amount), Category: category, CreatedAt: at}
}

func TestGenerateCategoryPieChart(t *testing.T) {
	g := NewChartGenerator(nil)
	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	totals := service.CategoryTotals([]model.Expense{
		expense(30_000, model.CategoryFood, base),
		expense(70_000, model.CategoryRent, base),
	})

	png, err := g.GenerateCategoryPieChart(totals)
	if err != nil {
		t.Fatalf("GenerateCategoryPieChart: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatalf("output is not a PNG (%d bytes)", len(png))
	}

	empty, err := g.GenerateCategoryPieChart(nil)
	if err != nil || empty != nil {
		t.Errorf("empty input = %d bytes, %v; want nil, nil", len(empty), err)
	}
}

func TestDailyTotalsFillsGapsInLocalDays(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	g := NewChartGenerator(tehran)

	points := g.DailyTotals([]model.Expense{
		expense(100, model.CategoryFood, time.Date(2024, 7, 1, 21, 0, 0, 0, time.UTC)), // 07-02 00:30 local
		expense(50, model.CategoryFood, time.Date(2024, 6, 29, 8, 0, 0, 0, time.UTC)),
		expense(25, model.CategoryFood, time.Date(2024, 6, 29, 9, 0, 0, 0, time.UTC)),
	})

	if len(points) != 4 {
		t.Fatalf("got %d points, want 4 (06-29..07-02): %+v", len(points), points)
	}
	if points[0].Amount != 75 || points[1].Amount != 0 || points[3].Amount != 100 {
		t.Errorf("points = %+v", points)
	}
	if d := points[3].Date; d.Month() != time.July || d.Day() != 2 {
		t.Errorf("last day = %v", d)
	}
}

func TestCalculateMovingAverage(t *testing.T) {
	got := calculateMovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("moving average = %v, want %v", got, want)
		}
	}
}

func TestGenerateSpendingTrend(t *testing.T) {
	g := NewChartGenerator(time.UTC)
	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

	single, err := g.GenerateSpendingTrend([]model.Expense{expense(10, model.CategoryFood, base)})
	if err != nil || single != nil {
		t.Errorf("single day = %d bytes, %v; want nil", len(single), err)
	}

	png, err := g.GenerateSpendingTrend([]model.Expense{
		expense(10, model.CategoryFood, base),
		expense(40, model.CategoryFood, base.AddDate(0, 0, 3)),
	})
	if err != nil {
		t.Fatalf("GenerateSpendingTrend: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("output is not a PNG")
	}
}
