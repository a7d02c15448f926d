package charts

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/money"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

// ChartGenerator renders export charts as PNG.
type ChartGenerator struct {
	loc *time.Location
}

// NewChartGenerator groups days in loc. A nil loc means UTC.
func NewChartGenerator(loc *time.Location) *ChartGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &ChartGenerator{loc: loc}
}

// minPieShare hides slices below one percent; they only clutter labels.
const minPieShare = 1.0

// GenerateCategoryPieChart draws the spend distribution across categories.
// It returns nil when there is nothing to draw.
func (g *ChartGenerator) GenerateCategoryPieChart(totals []service.CategoryTotal) ([]byte, error) {
	values := make([]chart.Value, 0, len(totals))
	for _, cat := range totals {
		share := cat.Share.InexactFloat64()
		if !cat.Amount.IsPositive() || share <= minPieShare {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", cat.Category, money.Format(cat.Amount), share),
			Value: cat.Amount.InexactFloat64(),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		})
	}
	if len(values) == 0 {
		return nil, nil
	}

	pie := chart.PieChart{
		Title:  "توزیع هزینه‌ها",
		Width:  800,
		Height: 800,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// DailyPoint is the spend of one local day.
type DailyPoint struct {
	Date   time.Time
	Amount float64
}

// DailyTotals buckets expenses by local day, oldest first, filling gaps with zero.
func (g *ChartGenerator) DailyTotals(expenses []model.Expense) []DailyPoint {
	if len(expenses) == 0 {
		return nil
	}

	sums := make(map[time.Time]float64)
	for _, e := range expenses {
		local := e.CreatedAt.In(g.loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)
		sums[day] += e.Amount.InexactFloat64()
	}

	days := make([]time.Time, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var points []DailyPoint
	for day := days[0]; !day.After(days[len(days)-1]); day = day.AddDate(0, 0, 1) {
		points = append(points, DailyPoint{Date: day, Amount: sums[day]})
	}
	return points
}

// calculateMovingAverage computes a trailing average over window points.
func calculateMovingAverage(values []float64, window int) []float64 {
	result := make([]float64, len(values))
	for i := range values {
		count := 0
		sum := 0.0
		for j := max(0, i-window+1); j <= i; j++ {
			sum += values[j]
			count++
		}
		result[i] = sum / float64(count)
	}
	return result
}

// GenerateSpendingTrend draws daily spend with a 7-day moving average.
// It returns nil when fewer than two days are covered.
func (g *ChartGenerator) GenerateSpendingTrend(expenses []model.Expense) ([]byte, error) {
	points := g.DailyTotals(expenses)
	if len(points) < 2 {
		return nil, nil
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = p.Date
		yValues[i] = p.Amount
	}
	average := calculateMovingAverage(yValues, 7)

	graph := chart.Chart{
		Width:  1200,
		Height: 600,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02"),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "daily",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "7-day average",
				XValues: xValues,
				YValues: average,
				Style: chart.Style{
					StrokeColor:     chart.ColorBlue,
					StrokeWidth:     2,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render spending trend: %w", err)
	}
	return buffer.Bytes(), nil
}
