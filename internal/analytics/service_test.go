package analytics

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
	"github.com/joseph-ayodele/tradedocs/internal/repository"
	"github.com/joseph-ayodele/tradedocs/internal/secure"
)

type fakeMSMEs struct {
	days map[string]int64
	err  error
}

func (f fakeMSMEs) Lookup(_ context.Context, id string) (repository.MSME, bool, error) {
	if f.err != nil {
		return repository.MSME{}, false, f.err
	}
	d, ok := f.days[id]
	return repository.MSME{ID: id, PremiumDays: d}, ok, nil
}

type fakeInvoices struct {
	table repository.InvoiceTable
	reads atomic.Int32
}

func (f *fakeInvoices) Count(context.Context, string) (int64, error) {
	f.reads.Add(1)
	return int64(len(f.table.Rows)), nil
}

func (f *fakeInvoices) Table(context.Context, string) (repository.InvoiceTable, error) {
	f.reads.Add(1)
	return f.table, nil
}

type harness struct {
	svc      *Service
	invoices *fakeInvoices
	calls    *atomic.Int32
	prompt   *atomic.Value
}

func newHarness(t *testing.T, msmes fakeMSMEs, table repository.InvoiceTable, answer string) harness {
	t.Helper()
	key, err := secure.GenerateKey()
	require.NoError(t, err)
	box, err := secure.NewBox(key)
	require.NoError(t, err)

	var calls atomic.Int32
	var prompt atomic.Value
	gen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		calls.Add(1)
		prompt.Store(p)
		return answer, nil
	})
	inv := &fakeInvoices{table: table}
	svc := NewService(msmes, inv, box, NewSecureSummarizer(box, gen, nil), nil)
	return harness{svc: svc, invoices: inv, calls: &calls, prompt: &prompt}
}

var twoInvoices = repository.InvoiceTable{
	Columns: []string{"invoice_id", "amount"},
	Rows:    [][]string{{"INV-1", "500"}, {"INV-2", "700"}},
}

func TestAnalyzeSuccess(t *testing.T) {
	h := newHarness(t, fakeMSMEs{days: map[string]int64{"m1": 12}}, twoInvoices,
		"Here is your summary:\n\n* Total sales ₹1,200\n*   Two invoices\n")

	res, err := h.svc.Analyze(context.Background(), "m1", "total sales")
	require.NoError(t, err)
	assert.Equal(t, "Here is your summary:\n• Total sales ₹1,200\n• Two invoices", res.Response)
	assert.Equal(t, int64(12), res.PremiumDays)

	p := h.prompt.Load().(string)
	assert.Contains(t, p, "The currency is INR.")
	assert.Contains(t, p, "Task: total sales")
	assert.Contains(t, p, "INV-2,700")
}

func TestAnalyzeShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		msmes   fakeMSMEs
		msmeID  string
		topic   string
		wantErr error
		wantMsg string
	}{
		{"missing topic", fakeMSMEs{}, "m1", " ", common.ErrInvalidInput, "Both MSME ID and topic are required"},
		{"missing id", fakeMSMEs{}, "", "sales", common.ErrInvalidInput, "Both MSME ID and topic are required"},
		{"topic too long", fakeMSMEs{}, "m1", strings.Repeat("x", maxTopicLen+1), common.ErrInvalidInput,
			"validation failed for field 'topic' with value '" + strings.Repeat("x", maxTopicLen+1) + "': must be at most 200 characters"},
		{"not found", fakeMSMEs{days: map[string]int64{}}, "m404", "sales", common.ErrNotFound, "MSME ID m404 not found in database"},
		{"expired", fakeMSMEs{days: map[string]int64{"m1": 0}}, "m1", "sales", common.ErrPremiumExpired,
			"Your premium has expired. Please renew to continue using the service."},
		{"negative premium", fakeMSMEs{days: map[string]int64{"m1": -3}}, "m1", "sales", common.ErrPremiumExpired,
			"Your premium has expired. Please renew to continue using the service."},
		{"lookup failure", fakeMSMEs{err: common.DatabaseLookupError("failed to look up MSME m1", errors.New("conn refused"))}, "m1", "sales",
			common.ErrDatabaseLookup, "failed to look up MSME m1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.msmes, twoInvoices, "unused")
			_, err := h.svc.Analyze(context.Background(), tt.msmeID, tt.topic)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, common.MessageOf(err))
			assert.Zero(t, h.calls.Load())
			assert.Zero(t, h.invoices.reads.Load())
		})
	}
}

func TestAnalyzeNoInvoices(t *testing.T) {
	h := newHarness(t, fakeMSMEs{days: map[string]int64{"m1": 5}}, repository.InvoiceTable{Columns: []string{"invoice_id"}}, "unused")

	res, err := h.svc.Analyze(context.Background(), "m1", "sales")
	require.NoError(t, err)
	assert.Equal(t, "No invoices found for this MSME. Please upload some invoices to analyze.", res.Response)
	assert.Zero(t, h.calls.Load())
}

func TestFormatBullets(t *testing.T) {
	in := "\n* one\n  *two  \n\nplain line\n"
	assert.Equal(t, "• one\n• two\nplain line", FormatBullets(in))
	assert.Equal(t, "", FormatBullets("\n \n"))
}

func TestSecureSummarizerRejectsForeignPayload(t *testing.T) {
	key, _ := secure.GenerateKey()
	box, _ := secure.NewBox(key)
	other, _ := secure.GenerateKey()
	otherBox, _ := secure.NewBox(other)

	sealed, err := otherBox.SealString("a,b\n1,2\n")
	require.NoError(t, err)

	var called bool
	s := NewSecureSummarizer(box, llm.GeneratorFunc(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}), nil)
	_, err = s.Summarize(context.Background(), sealed, "sales")
	require.Error(t, err)
	assert.ErrorIs(t, err, secure.ErrDecrypt)
	assert.False(t, called)
	assert.True(t, strings.HasPrefix(err.Error(), "decrypt csv"))
}
