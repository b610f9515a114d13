package shop

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/events"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

// OrderQuery filters the admin order listing. Status is matched case-insensitively.
type OrderQuery struct {
	Status string
	UserID string
}

// OrderLifecycle runs checkout and cancellation as single transactions and applies
// administrative status changes.
type OrderLifecycle struct {
	db       store.Datastore
	ledger   *InventoryLedger
	snapshot *CartSnapshot
	collaborators
	logger *zap.Logger
}

func NewOrderLifecycle(db store.Datastore, logger *zap.Logger, opts ...Option) *OrderLifecycle {
	return &OrderLifecycle{
		db:            db,
		ledger:        NewInventoryLedger(db, logger),
		snapshot:      NewCartSnapshot(db),
		collaborators: newCollaborators(opts),
		logger:        logger,
	}
}

// PlaceOrder converts the user's cart into a PENDING order. Every line is reserved,
// the order is written with prices frozen from the snapshot, and the cart is cleared,
// all in one transaction.
func (s *OrderLifecycle) PlaceOrder(ctx context.Context, userID bson.ObjectID) (order *models.Order, err error) {
	ctx, span := tracer().Start(ctx, "OrderLifecycle.PlaceOrder",
		trace.WithAttributes(attribute.String("user.id", userID.Hex())))
	defer func() { endSpan(span, err) }()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		snap, err := s.snapshot.Within(tx).Materialize(ctx, userID)
		if err != nil {
			return err
		}

		pending := &models.Order{
			ID:          bson.NewObjectID(),
			OrderNumber: models.GenerateOrderNumber(),
			UserID:      userID,
			Status:      models.OrderPending,
			Items:       make([]models.OrderItem, 0, len(snap.Lines)),
		}
		audit := Audit{Reference: pending.OrderNumber, PerformedBy: userID.Hex()}

		ledger := s.ledger.Within(tx)
		for _, line := range snap.Lines {
			if _, err := ledger.Reserve(ctx, line.ProductID, line.Quantity, audit); err != nil {
				return err
			}
			pending.Items = append(pending.Items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      line.Name,
				Quantity:  line.Quantity,
				Price:     line.UnitPrice,
			})
		}
		pending.CalculateTotals()
		pending.SetTimestamps()

		if err := tx.CreateOrder(ctx, pending); err != nil {
			return translate(err)
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return translate(err)
		}
		order = pending
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID.Hex()),
		attribute.String("order.number", order.OrderNumber),
		attribute.Int64("order.total", order.TotalAmount))
	s.logger.Info("Order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.Hex()),
		zap.Int("items", order.GetItemCount()),
		zap.Int64("total", order.TotalAmount))

	s.afterCommit(ctx, events.NewOrderEvent(events.OrderPlaced, order, ""), order)
	return order, nil
}

// CancelOrder cancels one of the user's own orders and puts its stock back. Only a
// PENDING order can be cancelled, so a second call fails with a *TransitionError and
// stock is restored exactly once.
func (s *OrderLifecycle) CancelOrder(ctx context.Context, userID, orderID bson.ObjectID) (order *models.Order, err error) {
	ctx, span := tracer().Start(ctx, "OrderLifecycle.CancelOrder",
		trace.WithAttributes(
			attribute.String("user.id", userID.Hex()),
			attribute.String("order.id", orderID.Hex())))
	defer func() { endSpan(span, err) }()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !current.IsOwnedBy(userID) {
			return notFound("order", orderID)
		}
		if !current.CanBeCancelled() {
			return &TransitionError{OrderID: orderID, From: current.Status, To: models.OrderCancelled}
		}
		if err := s.cancelWithin(ctx, tx, current, userID.Hex()); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("Order cancelled",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.Hex()))

	s.afterCommit(ctx, events.NewOrderEvent(events.OrderCancelled, order, models.OrderPending), order)
	return order, nil
}

// SetStatus is the administrative status change. value must be one of the exact
// status names. PENDING to CANCELLED releases stock like CancelOrder does; every other
// change only rewrites the status.
func (s *OrderLifecycle) SetStatus(ctx context.Context, orderID bson.ObjectID, value, performedBy string) (order *models.Order, err error) {
	ctx, span := tracer().Start(ctx, "OrderLifecycle.SetStatus",
		trace.WithAttributes(
			attribute.String("order.id", orderID.Hex()),
			attribute.String("order.status", value)))
	defer func() { endSpan(span, err) }()

	status, ok := models.ParseOrderStatus(value)
	if !ok {
		return nil, &StatusError{Value: value}
	}

	var previous models.OrderStatus
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		previous = current.Status

		if previous == models.OrderPending && status == models.OrderCancelled {
			if err := s.cancelWithin(ctx, tx, current, performedBy); err != nil {
				return err
			}
		} else {
			current.UpdateStatus(status)
			if err := tx.UpdateOrderStatus(ctx, current, previous); err != nil {
				return translate(err)
			}
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("performed_by", performedBy))

	kind := events.OrderStatusChanged
	if status == models.OrderCancelled && previous == models.OrderPending {
		kind = events.OrderCancelled
	}
	s.afterCommit(ctx, events.NewOrderEvent(kind, order, previous), order)
	return order, nil
}

func (s *OrderLifecycle) GetUserOrders(ctx context.Context, userID bson.ObjectID, page, limit int) (*models.PagedResult[models.Order], error) {
	page, limit = models.ClampPage(page, limit)
	rows, total, err := s.db.ListOrders(ctx, store.OrderFilter{
		UserID: &userID,
		Page:   store.Page{Page: page, Limit: limit},
	})
	if err != nil {
		return nil, translate(err)
	}
	return paged(rows, page, limit, total), nil
}

// GetOrder returns an order owned by userID. Someone else's order is reported as
// not found.
func (s *OrderLifecycle) GetOrder(ctx context.Context, userID, orderID bson.ObjectID) (*models.Order, error) {
	order, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, notFound("order", orderID)
	}
	return order, nil
}

// FindOrder is the unscoped lookup used by administrators.
func (s *OrderLifecycle) FindOrder(ctx context.Context, orderID bson.ObjectID) (*models.Order, error) {
	return loadOrder(ctx, s.db, orderID)
}

func (s *OrderLifecycle) GetAllOrders(ctx context.Context, query OrderQuery, page, limit int) (*models.PagedResult[models.Order], error) {
	page, limit = models.ClampPage(page, limit)
	filter := store.OrderFilter{Page: store.Page{Page: page, Limit: limit}}

	if query.Status != "" {
		status, ok := models.NormalizeOrderStatus(query.Status)
		if !ok {
			return nil, &StatusError{Value: query.Status}
		}
		filter.Status = status
	}
	if query.UserID = strings.TrimSpace(query.UserID); query.UserID != "" {
		userID, err := bson.ObjectIDFromHex(query.UserID)
		if err != nil {
			return nil, invalidInput("invalid user id %q", query.UserID)
		}
		filter.UserID = &userID
	}

	rows, total, err := s.db.ListOrders(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return paged(rows, page, limit, total), nil
}

// cancelWithin marks a PENDING order CANCELLED and releases every line. The status
// write only succeeds while the stored order is still PENDING.
func (s *OrderLifecycle) cancelWithin(ctx context.Context, tx store.Tx, order *models.Order, performedBy string) error {
	from := order.Status
	order.UpdateStatus(models.OrderCancelled)
	err := tx.UpdateOrderStatus(ctx, order, models.OrderPending)
	if errors.Is(err, store.ErrStatusConflict) {
		return &TransitionError{OrderID: order.ID, From: from, To: models.OrderCancelled}
	}
	if err != nil {
		return translate(err)
	}

	ledger := s.ledger.Within(tx)
	audit := Audit{Reference: order.OrderNumber, PerformedBy: performedBy}
	for _, item := range order.Items {
		_, err := ledger.Release(ctx, item.ProductID, item.Quantity, audit)
		if errors.Is(err, ErrNotFound) {
			// Product deleted since checkout; there is nothing to return the units to.
			s.logger.Warn("Skipping stock release for deleted product",
				zap.String("order_number", order.OrderNumber),
				zap.String("product_id", item.ProductID.Hex()))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// afterCommit publishes the event and drops cached copies of the products the order
// touched. Failures are logged and never reach the caller.
func (s *OrderLifecycle) afterCommit(ctx context.Context, event events.OrderEvent, order *models.Order) {
	ids := make([]bson.ObjectID, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate product cache",
			zap.String("order_number", order.OrderNumber), zap.Error(err))
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("type", string(event.Type)),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}

func loadOrder(ctx context.Context, db store.Tx, orderID bson.ObjectID) (*models.Order, error) {
	order, err := db.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("order", orderID)
	}
	if err != nil {
		return nil, translate(err)
	}
	return order, nil
}
