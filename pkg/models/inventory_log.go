package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ChangeType string

const (
	ChangeSale       ChangeType = "sale"
	ChangeReturn     ChangeType = "return"
	ChangeAdjustment ChangeType = "adjustment"
)

// InventoryLog represents a record of inventory changes for audit trail
type InventoryLog struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID       bson.ObjectID `bson:"product_id" json:"product_id"`
	ChangeType      ChangeType    `bson:"change_type" json:"change_type"`
	QuantityBefore  int           `bson:"quantity_before" json:"quantity_before"`
	QuantityAfter   int           `bson:"quantity_after" json:"quantity_after"`
	QuantityChanged int           `bson:"quantity_changed" json:"quantity_changed"` // Can be positive or negative
	Reference       string        `bson:"reference,omitempty" json:"reference,omitempty"`
	PerformedBy     string        `bson:"performed_by" json:"performed_by"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
}

// NewInventoryLog records a stock move from before to after.
func NewInventoryLog(productID bson.ObjectID, change ChangeType, before, after int, reference, performedBy string) *InventoryLog {
	il := &InventoryLog{
		ID:             bson.NewObjectID(),
		ProductID:      productID,
		ChangeType:     change,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reference:      reference,
		PerformedBy:    performedBy,
	}
	il.CalculateQuantityChanged()
	il.SetTimestamp()
	return il
}

// SetTimestamp sets the creation timestamp
func (il *InventoryLog) SetTimestamp() {
	if il.CreatedAt.IsZero() {
		il.CreatedAt = time.Now().UTC()
	}
}

// CalculateQuantityChanged calculates the difference between before and after
func (il *InventoryLog) CalculateQuantityChanged() {
	il.QuantityChanged = il.QuantityAfter - il.QuantityBefore
}

func (il *InventoryLog) IsIncrease() bool {
	return il.QuantityChanged > 0
}

func (il *InventoryLog) IsDecrease() bool {
	return il.QuantityChanged < 0
}

// GetAbsoluteChange returns the absolute value of quantity changed
func (il *InventoryLog) GetAbsoluteChange() int {
	if il.QuantityChanged < 0 {
		return -il.QuantityChanged
	}
	return il.QuantityChanged
}

// GetChangeDescription returns a human-readable description of the change
func (il *InventoryLog) GetChangeDescription() string {
	direction := "unchanged"
	if il.IsIncrease() {
		direction = "increased"
	} else if il.IsDecrease() {
		direction = "decreased"
	}
	return fmt.Sprintf("%s by %d units", direction, il.GetAbsoluteChange())
}
