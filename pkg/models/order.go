package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status an order can hold, in lifecycle order.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

// ParseOrderStatus accepts only the exact upper-case status names.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	for _, status := range OrderStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// NormalizeOrderStatus is the lenient variant used for list filters ("shipped" -> SHIPPED).
func NormalizeOrderStatus(value string) (OrderStatus, bool) {
	return ParseOrderStatus(strings.ToUpper(strings.TrimSpace(value)))
}

// OrderItem is a line of an order. Price is the product price frozen at checkout.
type OrderItem struct {
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	Name      string        `json:"name" bson:"name"`
	Quantity  int           `json:"quantity" bson:"quantity"`
	Price     int64         `json:"price" bson:"price"`
	Subtotal  int64         `json:"subtotal" bson:"subtotal"`
}

// Timeline tracks the lifecycle of an order
type Timeline struct {
	OrderedAt         time.Time  `json:"ordered_at" bson:"ordered_at"`
	PaidAt            *time.Time `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty" bson:"shipped_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty" bson:"estimated_delivery,omitempty"`
}

// Order is durable and append-only apart from Status, Timeline and UpdatedAt.
type Order struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	OrderNumber string        `json:"order_number" bson:"order_number"`
	UserID      bson.ObjectID `json:"user_id" bson:"user_id"`
	Status      OrderStatus   `json:"status" bson:"status"`
	Items       []OrderItem   `json:"items" bson:"items"`
	TotalAmount int64         `json:"total_amount" bson:"total_amount"`
	Timeline    Timeline      `json:"timeline" bson:"timeline"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
}

// CalculateItemSubtotal calculates subtotal for a single order item
func (oi *OrderItem) CalculateItemSubtotal() {
	oi.Subtotal = oi.Price * int64(oi.Quantity)
}

// CalculateTotals recalculates item subtotals and the order total
func (o *Order) CalculateTotals() {
	var total int64
	for i := range o.Items {
		o.Items[i].CalculateItemSubtotal()
		total += o.Items[i].Subtotal
	}
	o.TotalAmount = total
}

// SetTimestamps sets created_at and updated_at timestamps
func (o *Order) SetTimestamps() {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
		o.Timeline.OrderedAt = now
	}
	o.UpdatedAt = now
}

// UpdateStatus updates the order status and timeline accordingly
func (o *Order) UpdateStatus(newStatus OrderStatus) {
	o.Status = newStatus
	now := time.Now().UTC()

	switch newStatus {
	case OrderProcessing:
		if o.Timeline.PaidAt == nil {
			o.Timeline.PaidAt = &now
		}
	case OrderShipped:
		if o.Timeline.ShippedAt == nil {
			o.Timeline.ShippedAt = &now
		}
		estimatedDelivery := now.AddDate(0, 0, 5)
		o.Timeline.EstimatedDelivery = &estimatedDelivery
	case OrderDelivered:
		if o.Timeline.DeliveredAt == nil {
			o.Timeline.DeliveredAt = &now
		}
	case OrderCancelled:
		if o.Timeline.CancelledAt == nil {
			o.Timeline.CancelledAt = &now
		}
	}

	o.UpdatedAt = now
}

// GetItemCount returns the total number of units in the order
func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// IsOwnedBy reports whether the order belongs to the given user.
func (o *Order) IsOwnedBy(userID bson.ObjectID) bool {
	return o.UserID == userID
}

// CanBeCancelled checks if the order can still be cancelled by its owner
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderPending
}

// Clone returns a deep copy, items included.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

func GenerateOrderNumber() string {
	now := time.Now().UTC()
	// Format: ORD-YYYYMMDD-HHMMSS-XXXXXXXX
	return fmt.Sprintf("ORD-%s-%s",
		now.Format("20060102-150405"),
		strings.ToUpper(uuid.NewString()[:8]),
	)
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
