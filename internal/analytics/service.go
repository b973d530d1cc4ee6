package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/export"
	"github.com/joseph-ayodele/tradedocs/internal/repository"
)

const (
	maxTopicLen = 200

	msgMissingParams = "Both MSME ID and topic are required"
	msgExpired       = "Your premium has expired. Please renew to continue using the service."
	msgNoInvoices    = "No invoices found for this MSME. Please upload some invoices to analyze."
)

// Result is the answer returned to the caller on success.
type Result struct {
	Response    string `json:"response"`
	PremiumDays int64  `json:"premium_days"`
}

// Service gates invoice summaries on the MSME's premium counter.
type Service struct {
	msmes      repository.MSMERepository
	invoices   repository.InvoiceRepository
	cipher     Cipher
	summarizer Summarizer
	logger     *slog.Logger
}

func NewService(msmes repository.MSMERepository, invoices repository.InvoiceRepository, cipher Cipher, summarizer Summarizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{msmes: msmes, invoices: invoices, cipher: cipher, summarizer: summarizer, logger: logger}
}

// Analyze runs the lookup, gating and summary steps in order. Missing input,
// unknown MSMEs and expired premiums return before any invoice is read.
func (s *Service) Analyze(ctx context.Context, msmeID, topic string) (Result, error) {
	start := time.Now()
	v := common.NewValidator().
		Field("msme_id", msmeID, common.Required).
		Field("topic", topic, common.Required)
	if v.HasErrors() {
		return Result{}, common.InvalidInputError(msgMissingParams)
	}
	if err := common.NewValidator().Field("topic", topic, common.MaxLength(maxTopicLen)).Err(); err != nil {
		return Result{}, err
	}
	ctx = common.WithMSMEID(ctx, msmeID)

	m, ok, err := s.msmes.Lookup(ctx, msmeID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		s.logger.Info("analytics.msme_not_found", "msme_id", msmeID)
		return Result{}, common.NotFoundErrorf("MSME ID %s not found in database", msmeID)
	}
	if m.PremiumDays <= 0 {
		s.logger.Info("analytics.premium_expired", "msme_id", msmeID, "premium_days", m.PremiumDays)
		return Result{}, common.PremiumExpiredError(msgExpired)
	}

	n, err := s.invoices.Count(ctx, msmeID)
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		return Result{Response: msgNoInvoices, PremiumDays: m.PremiumDays}, nil
	}

	table, err := s.invoices.Table(ctx, msmeID)
	if err != nil {
		return Result{}, err
	}
	csvData, err := export.RenderCSV(table)
	if err != nil {
		return Result{}, common.NewAppError(common.CodeInternal, "failed to render invoices", err)
	}
	sealed, err := s.cipher.SealString(string(csvData))
	if err != nil {
		return Result{}, common.NewAppError(common.CodeInternal, "failed to encrypt invoices", err)
	}

	answer, err := s.summarizer.Summarize(ctx, sealed, topic)
	if err != nil {
		s.logger.Error("analytics.summarize_failed", "msme_id", msmeID, "error", err)
		return Result{}, common.NewAppError(common.CodeInternal, err.Error(), err)
	}
	plain, err := s.cipher.OpenString(answer)
	if err != nil {
		return Result{}, common.NewAppError(common.CodeInternal, "failed to decrypt summary", err)
	}

	s.logger.Info("analytics.ok",
		"msme_id", msmeID,
		"invoices", n,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Response: FormatBullets(plain), PremiumDays: m.PremiumDays}, nil
}
