// Package export renders a user's ledger as a spreadsheet and charts and
// hands them to the transport.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bahmanfallahi/jibjib/internal/charts"
	"github.com/bahmanfallahi/jibjib/internal/cycle"
	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

const (
	SheetName        = "Expenses"
	WorkbookFileName = "expenses.xlsx"
)

var header = []interface{}{"timestamp", "shamsi_date", "amount", "category", "note"}

// Bundle is everything produced for one export. Chart fields are nil when
// there was not enough data to draw them.
type Bundle struct {
	Workbook []byte
	PieChart []byte
	Trend    []byte
}

type Renderer struct {
	cal    cycle.Calendar
	charts *charts.ChartGenerator
}

func NewRenderer(cal cycle.Calendar) *Renderer {
	return &Renderer{cal: cal, charts: charts.NewChartGenerator(cal.Location())}
}

// Render builds the workbook and both charts.
func (r *Renderer) Render(expenses []model.Expense) (*Bundle, error) {
	workbook, err := r.Workbook(expenses)
	if err != nil {
		return nil, err
	}
	pie, err := r.charts.GenerateCategoryPieChart(service.CategoryTotals(expenses))
	if err != nil {
		return nil, err
	}
	trend, err := r.charts.GenerateSpendingTrend(expenses)
	if err != nil {
		return nil, err
	}
	return &Bundle{Workbook: workbook, PieChart: pie, Trend: trend}, nil
}

// Workbook writes one row per expense under a header row.
func (r *Renderer) Workbook(expenses []model.Expense) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			e.CreatedAt.In(r.cal.Location()).Format(time.DateTime),
			r.cal.DateString(e.CreatedAt),
			e.Amount.InexactFloat64(),
			string(e.Category),
			e.Note,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "B", 20); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
