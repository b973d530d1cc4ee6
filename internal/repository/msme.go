package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/joseph-ayodele/tradedocs/internal/common"
)

// MSME is the account whose invoices are analyzed.
type MSME struct {
	ID          string `json:"msme_id"`
	PremiumDays int64  `json:"premium_days"`
}

type MSMERepository interface {
	// Lookup reports whether the MSME exists and, if so, its premium counter.
	Lookup(ctx context.Context, msmeID string) (MSME, bool, error)
}

type msmeRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewMSMERepository(db Querier, logger *slog.Logger) MSMERepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &msmeRepository{db: db, logger: logger}
}

const lookupMSMEQuery = `
SELECT EXISTS (SELECT 1 FROM msme WHERE msme_id::text = $1),
       (SELECT premium_days FROM msme WHERE msme_id::text = $1 LIMIT 1)`

func (r *msmeRepository) Lookup(ctx context.Context, msmeID string) (MSME, bool, error) {
	var (
		exists  bool
		premium pgtype.Int8
	)
	if err := r.db.QueryRow(ctx, lookupMSMEQuery, msmeID).Scan(&exists, &premium); err != nil {
		r.logger.Error("failed to look up msme", "msme_id", msmeID, "error", err)
		return MSME{}, false, common.DatabaseLookupError("failed to look up MSME "+msmeID, err)
	}
	if !exists {
		return MSME{}, false, nil
	}
	m := MSME{ID: msmeID}
	if premium.Valid {
		m.PremiumDays = premium.Int64
	}
	return m, true, nil
}
