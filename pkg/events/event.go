// Package events publishes order lifecycle events to a message broker after the
// transaction that produced them has committed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderCancelled     Type = "order.cancelled"
	OrderStatusChanged Type = "order.status_changed"
)

type Item struct {
	ProductID bson.ObjectID `json:"product_id"`
	Quantity  int           `json:"quantity"`
	Price     int64         `json:"price"`
}

// OrderEvent is the message body written to every broker.
type OrderEvent struct {
	ID             string             `json:"id"`
	Type           Type               `json:"type"`
	OrderID        bson.ObjectID      `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	UserID         bson.ObjectID      `json:"user_id"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    int64              `json:"total_amount"`
	Items          []Item             `json:"items"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func NewOrderEvent(kind Type, order *models.Order, previous models.OrderStatus) OrderEvent {
	items := make([]Item, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return OrderEvent{
		ID:             uuid.NewString(),
		Type:           kind,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalAmount:    order.TotalAmount,
		Items:          items,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher delivers order events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }

func (Noop) Close() error { return nil }

// traceHeaders returns the W3C trace context of ctx as message headers.
func traceHeaders(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}
