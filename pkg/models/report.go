package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type StatusCount struct {
	Status  OrderStatus `json:"status" bson:"_id"`
	Orders  int64       `json:"orders" bson:"orders"`
	Revenue int64       `json:"revenue" bson:"revenue"`
}

type TopProduct struct {
	ProductID bson.ObjectID `json:"product_id" bson:"_id"`
	Name      string        `json:"name" bson:"name"`
	Quantity  int64         `json:"quantity" bson:"quantity"`
	Revenue   int64         `json:"revenue" bson:"revenue"`
}

// SalesSummary aggregates orders created in [From, To). Revenue excludes cancelled orders.
type SalesSummary struct {
	From        time.Time     `json:"from"`
	To          time.Time     `json:"to"`
	TotalOrders int64         `json:"total_orders"`
	Revenue     int64         `json:"revenue"`
	ByStatus    []StatusCount `json:"by_status"`
	TopProducts []TopProduct  `json:"top_products"`
}
