package repository

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tradedocs/internal/common"
)

// InvoiceTable is every invoice row of one MSME, values stringified.
type InvoiceTable struct {
	Columns []string
	Rows    [][]string
}

type InvoiceRepository interface {
	Count(ctx context.Context, msmeID string) (int64, error)
	Table(ctx context.Context, msmeID string) (InvoiceTable, error)
}

type invoiceRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewInvoiceRepository(db Querier, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Count(ctx context.Context, msmeID string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoice WHERE msme_id::text = $1`, msmeID).Scan(&n); err != nil {
		r.logger.Error("failed to count invoices", "msme_id", msmeID, "error", err)
		return 0, common.DatabaseLookupError("failed to count invoices for MSME "+msmeID, err)
	}
	return n, nil
}

// Table returns the invoice table with the column order the database reports.
func (r *invoiceRepository) Table(ctx context.Context, msmeID string) (InvoiceTable, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM invoice WHERE msme_id::text = $1`, msmeID)
	if err != nil {
		r.logger.Error("failed to load invoices", "msme_id", msmeID, "error", err)
		return InvoiceTable{}, common.DatabaseLookupError("failed to load invoices for MSME "+msmeID, err)
	}
	defer rows.Close()

	var t InvoiceTable
	for _, fd := range rows.FieldDescriptions() {
		t.Columns = append(t.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return InvoiceTable{}, common.DatabaseLookupError("failed to read invoice row", err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = FormatValue(v)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return InvoiceTable{}, common.DatabaseLookupError("failed to read invoices", err)
	}
	r.logger.Debug("invoices loaded", "msme_id", msmeID, "rows", len(t.Rows), "columns", len(t.Columns))
	return t, nil
}

// FormatValue renders a decoded column value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(x).String()
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return FormatValue(dv)
	}
	return fmt.Sprint(v)
}
