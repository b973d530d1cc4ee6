package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/repository"
)

const sheetName = "Invoices"

// Service produces CSV and XLSX renderings of an MSME's invoice table.
type Service struct {
	msmes    repository.MSMERepository
	invoices repository.InvoiceRepository
	logger   *slog.Logger
}

func NewService(msmes repository.MSMERepository, invoices repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{msmes: msmes, invoices: invoices, logger: logger}
}

// ExportInvoicesCSV returns the invoice table as CSV with a header row.
func (s *Service) ExportInvoicesCSV(ctx context.Context, msmeID string) ([]byte, error) {
	start := time.Now()
	table, err := s.load(ctx, msmeID)
	if err != nil {
		return nil, err
	}
	out, err := RenderCSV(table)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.csv.ok",
		"msme_id", msmeID,
		"rows", len(table.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// ExportInvoicesXLSX returns a workbook with a single "Invoices" sheet.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, msmeID string) ([]byte, error) {
	start := time.Now()
	table, err := s.load(ctx, msmeID)
	if err != nil {
		return nil, err
	}
	out, err := RenderXLSX(table)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"msme_id", msmeID,
		"rows", len(table.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Service) load(ctx context.Context, msmeID string) (repository.InvoiceTable, error) {
	if err := common.NewValidator().Field("msme_id", msmeID, common.Required).Err(); err != nil {
		return repository.InvoiceTable{}, err
	}
	if _, ok, err := s.msmes.Lookup(ctx, msmeID); err != nil {
		return repository.InvoiceTable{}, err
	} else if !ok {
		return repository.InvoiceTable{}, common.NotFoundErrorf("MSME ID %s not found in database", msmeID)
	}
	return s.invoices.Table(ctx, msmeID)
}

// RenderCSV writes the header and every row.
func RenderCSV(table repository.InvoiceTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderXLSX writes the table to a workbook and sizes columns to their content.
func RenderXLSX(table repository.InvoiceTable) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	widths := make([]int, len(table.Columns))
	for i, h := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		widths[i] = utf8.RuneCountInString(h)
	}
	for r, row := range table.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheetName, cell, v)
			if c < len(widths) {
				widths[c] = max(widths[c], utf8.RuneCountInString(v))
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, col, col, float64(min(max(w+2, 10), 60)))
	}
	if len(table.Columns) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
			_ = f.SetCellStyle(sheetName, "A1", last, style)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
