// Package export renders reports as downloadable spreadsheet workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/reports"
)

const sheetName = "Expense Report"

// ExcelWriter builds expense-report workbooks.
type ExcelWriter struct {
	logger *zap.Logger
}

// NewExcelWriter creates a spreadsheet writer.
func NewExcelWriter(logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{logger: logger}
}

// Build renders the report into a workbook. The caller owns the returned
// file and must Close it.
func (w *ExcelWriter) Build(report reports.ExpenseReport) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		w.logger.Warn("Failed to drop default sheet", zap.Error(err))
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	w.setRow(f, 1, "Expense Report", "", "", "", "")
	w.setRow(f, 2, "Filter", string(report.Filter), "", "", "")
	w.setRow(f, 4, "Date", "Description", "Amount", "Currency", "CAD Amount")
	w.styleRow(f, 1, bold)
	w.styleRow(f, 4, bold)

	row := 5
	for _, group := range report.Groups {
		w.setRow(f, row, group.Category, "", "", "", "")
		w.styleRow(f, row, bold)
		row++

		for _, e := range group.Expenses {
			w.setRow(f, row, e.Date, e.Description,
				e.Amount.StringFixed(2), e.Currency, e.CADAmount.StringFixed(2))
			row++
		}

		w.setRow(f, row, "", group.Category+" Total", "", "", group.Total.StringFixed(2))
		w.styleRow(f, row, bold)
		row += 2
	}

	w.setRow(f, row, "", "Grand Total", "", "", report.GrandTotal.StringFixed(2))
	w.styleRow(f, row, bold)

	for col, width := range map[string]float64{"A": 14, "B": 40, "C": 12, "D": 10, "E": 14} {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			w.logger.Warn("Failed to set column width", zap.String("col", col), zap.Error(err))
		}
	}

	return f, nil
}

// Write renders the report and streams the workbook to out.
func (w *ExcelWriter) Write(report reports.ExpenseReport, out io.Writer) error {
	f, err := w.Build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *ExcelWriter) setRow(f *excelize.File, row int, values ...string) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			w.logger.Warn("Bad cell coordinates", zap.Int("row", row), zap.Int("col", i+1), zap.Error(err))
			continue
		}
		if v == "" {
			continue
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			w.logger.Warn("Failed to set cell value", zap.String("cell", cell), zap.Error(err))
		}
	}
}

func (w *ExcelWriter) styleRow(f *excelize.File, row, style int) {
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(5, row)
	if err := f.SetCellStyle(sheetName, start, end, style); err != nil {
		w.logger.Warn("Failed to style row", zap.Int("row", row), zap.Error(err))
	}
}
