package shop

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

// Audit is attached to every inventory log the ledger writes.
type Audit struct {
	Reference   string
	PerformedBy string
}

// InventoryLedger owns every stock mutation. Reserve and Release are single
// conditional updates in the datastore, and each successful move is recorded as an
// inventory log through the same handle, so inside a transaction the log commits or
// rolls back together with the stock change.
type InventoryLedger struct {
	db     store.Tx
	logger *zap.Logger
}

func NewInventoryLedger(db store.Tx, logger *zap.Logger) *InventoryLedger {
	return &InventoryLedger{db: db, logger: logger}
}

// Within returns a ledger bound to tx.
func (l *InventoryLedger) Within(tx store.Tx) *InventoryLedger {
	return &InventoryLedger{db: tx, logger: l.logger}
}

// Reserve takes quantity units of a product. It fails with a *StockError when the
// product holds fewer than quantity units, leaving stock untouched.
func (l *InventoryLedger) Reserve(ctx context.Context, productID bson.ObjectID, quantity int, audit Audit) (*models.Product, error) {
	if quantity <= 0 {
		return nil, invalidInput("reserve quantity must be positive, got %d", quantity)
	}

	product, err := l.db.AdjustStock(ctx, productID, -quantity)
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		stockErr := &StockError{ProductID: productID, Requested: quantity}
		if current, getErr := l.db.GetProduct(ctx, productID); getErr == nil {
			stockErr.Name = current.Name
			stockErr.Available = current.Stock
		}
		return nil, stockErr
	case errors.Is(err, store.ErrNotFound):
		return nil, notFound("product", productID)
	case err != nil:
		return nil, translate(err)
	}

	if err := l.record(ctx, product, models.ChangeSale, quantity, audit); err != nil {
		return nil, err
	}
	return product, nil
}

// Release puts quantity units back. There is no upper bound: a release only ever
// undoes an earlier reservation.
func (l *InventoryLedger) Release(ctx context.Context, productID bson.ObjectID, quantity int, audit Audit) (*models.Product, error) {
	if quantity <= 0 {
		return nil, invalidInput("release quantity must be positive, got %d", quantity)
	}

	product, err := l.db.AdjustStock(ctx, productID, quantity)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, notFound("product", productID)
	case err != nil:
		return nil, translate(err)
	}

	if err := l.record(ctx, product, models.ChangeReturn, -quantity, audit); err != nil {
		return nil, err
	}
	return product, nil
}

// Adjust applies an administrative stock correction. Stock may not go below zero.
func (l *InventoryLedger) Adjust(ctx context.Context, productID bson.ObjectID, delta int, audit Audit) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	if delta == 0 {
		product, err = l.db.GetProduct(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("product", productID)
		}
		return product, translate(err)
	}

	product, err = l.db.AdjustStock(ctx, productID, delta)
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return nil, invalidInput("stock cannot go below zero")
	case errors.Is(err, store.ErrNotFound):
		return nil, notFound("product", productID)
	case err != nil:
		return nil, translate(err)
	}

	if err := l.record(ctx, product, models.ChangeAdjustment, -delta, audit); err != nil {
		return nil, err
	}
	return product, nil
}

// record writes the audit entry for a move that took stock from after+taken to after.
func (l *InventoryLedger) record(ctx context.Context, after *models.Product, change models.ChangeType, taken int, audit Audit) error {
	entry := models.NewInventoryLog(after.ID, change, after.Stock+taken, after.Stock, audit.Reference, audit.PerformedBy)
	if err := l.db.AppendInventoryLog(ctx, entry); err != nil {
		return translate(err)
	}

	l.logger.Debug("Stock moved",
		zap.String("product_id", after.ID.Hex()),
		zap.String("change", string(change)),
		zap.Int("before", entry.QuantityBefore),
		zap.Int("after", entry.QuantityAfter),
		zap.String("reference", audit.Reference))
	return nil
}
