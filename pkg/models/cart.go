package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CartItem holds no price; prices are read live from the product until checkout.
type CartItem struct {
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	Quantity  int           `json:"quantity" bson:"quantity"`
	AddedAt   time.Time     `json:"added_at" bson:"added_at"`
}

// Cart is the per-user working state, one document per user.
type Cart struct {
	ID        bson.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    bson.ObjectID `json:"user_id" bson:"user_id"`
	Items     []CartItem    `json:"items" bson:"items"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

// NewCart returns an empty cart for the user.
func NewCart(userID bson.ObjectID) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        bson.NewObjectID(),
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Find returns the index of the line for productID, or -1.
func (c *Cart) Find(productID bson.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// SetQuantity inserts or replaces the line for productID.
func (c *Cart) SetQuantity(productID bson.ObjectID, quantity int) {
	now := time.Now().UTC()
	if i := c.Find(productID); i >= 0 {
		c.Items[i].Quantity = quantity
	} else {
		c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity, AddedAt: now})
	}
	c.UpdatedAt = now
}

// Remove drops the line for productID and reports whether it existed.
func (c *Cart) Remove(productID bson.ObjectID) bool {
	i := c.Find(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.UpdatedAt = time.Now().UTC()
	return true
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy, items included.
func (c Cart) Clone() Cart {
	c.Items = append([]CartItem{}, c.Items...)
	return c
}

// CartLine is a cart item priced against the current product.
type CartLine struct {
	ProductID bson.ObjectID `json:"product_id"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	UnitPrice int64         `json:"unit_price"`
	LineTotal int64         `json:"line_total"`
	Stock     int           `json:"stock"`
}

// CartView is what the cart endpoints return.
type CartView struct {
	ID        bson.ObjectID `json:"id"`
	UserID    bson.ObjectID `json:"user_id"`
	Items     []CartLine    `json:"items"`
	ItemCount int           `json:"item_count"`
	Total     int64         `json:"total"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}
