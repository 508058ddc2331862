package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/repository"
)

// Lister is the repository slice exports need.
type Lister interface {
	List(ctx context.Context, f repository.ListFilter) ([]entity.Expense, error)
}

// Service produces XLSX or CSV bytes for ledger exports.
type Service struct {
	expenses Lister
	logger   *slog.Logger
}

func NewService(expenses Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{expenses: expenses, logger: logger}
}

var exportHeaders = []string{
	"Date",
	"Vendor",
	"Amount",
	"Currency",
	"Category",
	"Description",
	"Source",
}

// window normalizes the filter dates to date-only UTC. If only from is
// given the window runs to today.
func window(f repository.ListFilter) repository.ListFilter {
	dateOnly := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	if !f.From.IsZero() {
		f.From = dateOnly(f.From)
	}
	if !f.To.IsZero() {
		f.To = dateOnly(f.To)
	}
	if !f.From.IsZero() && f.To.IsZero() {
		f.To = dateOnly(time.Now().UTC())
	}
	return f
}

func expenseRow(e *entity.Expense) []string {
	return []string{
		e.DateIncurred.Format("2006-01-02"),
		e.Vendor,
		e.Amount.StringFixed(2),
		e.CurrencyCode,
		e.Category,
		e.Description,
		string(e.Source),
	}
}

// ExportXLSX returns an XLSX workbook for the given window.
func (s *Service) ExportXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.expenses.List(ctx, window(filter))
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Expenses"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for ri := range recs {
		row := ri + 2
		for ci, v := range expenseRow(&recs[ri]) {
			cell, _ := excelize.CoordinatesToCellName(ci+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(sheet, "C", "D", 12) // amount, currency
	_ = f.SetColWidth(sheet, "E", "E", 18) // category
	_ = f.SetColWidth(sheet, "F", "F", 48) // description
	_ = f.SetColWidth(sheet, "G", "G", 18) // source

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportCSV returns the same table as comma-separated text.
func (s *Service) ExportCSV(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.expenses.List(ctx, window(filter))
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, err
	}
	for i := range recs {
		if err := w.Write(expenseRow(&recs[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
