package shop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

const defaultReportWindow = 30 * 24 * time.Hour

type Reports struct {
	db     store.Tx
	logger *zap.Logger
}

func NewReports(db store.Tx, logger *zap.Logger) *Reports {
	return &Reports{db: db, logger: logger}
}

// SalesSummary covers [from, to). A zero to means now and a zero from means thirty
// days before to.
func (r *Reports) SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultReportWindow)
	}
	if !from.Before(to) {
		return nil, invalidInput("from must be before to")
	}

	summary, err := r.db.SalesSummary(ctx, from, to)
	if err != nil {
		return nil, translate(err)
	}
	r.logger.Debug("Sales summary built",
		zap.Time("from", from), zap.Time("to", to), zap.Int64("orders", summary.TotalOrders))
	return summary, nil
}
