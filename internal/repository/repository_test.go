package repository

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"text", "ACME", "ACME"},
		{"int", int64(42), "42"},
		{"float", 1234.5, "1234.5"},
		{"date", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "2024-04-01"},
		{"timestamp", time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC), "2024-04-01T09:30:00Z"},
		{"uuid", [16]byte(id), id.String()},
		{"numeric", pgtype.Numeric{Int: big.NewInt(12050), Exp: -2, Valid: true}, "120.50"},
		{"null numeric", pgtype.Numeric{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

// TestRepositoriesAgainstPostgres runs only when TEST_DB_URL points at a scratch database.
func TestRepositoriesAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()
	pool, err := Open(ctx, Config{DSN: dsn, DialTimeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	defer Close(pool, nil)

	// temp tables are per session, so keep every query on one connection
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, `
CREATE TEMP TABLE msme (msme_id text PRIMARY KEY, premium_days int);
CREATE TEMP TABLE invoice (invoice_id text, msme_id text, amount numeric, issued date);
INSERT INTO msme VALUES ('m1', 30), ('m2', 0);
INSERT INTO invoice VALUES ('INV-1', 'm1', 500.00, '2024-04-01'), ('INV-2', 'm1', 120.5, '2024-04-02');`)
	require.NoError(t, err)

	msmes := NewMSMERepository(conn, nil)
	m, ok, err := msmes.Lookup(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(30), m.PremiumDays)

	_, ok, err = msmes.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	invoices := NewInvoiceRepository(conn, nil)
	n, err := invoices.Count(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	table, err := invoices.Table(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice_id", "msme_id", "amount", "issued"}, table.Columns)
	assert.Len(t, table.Rows, 2)

	require.NoError(t, HealthCheck(ctx, pool, time.Second, nil))
}
