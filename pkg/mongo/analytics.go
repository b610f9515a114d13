package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

// SalesSummary aggregates orders created in [from, to) by status and ranks products
// by units sold. Cancelled orders count towards the status breakdown only.
func (s *Store) SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	collection := s.collection(ordersCollection)
	inRange := bson.D{{Key: "$match", Value: bson.D{
		{Key: "created_at", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lt", Value: to},
		}},
	}}}

	statusPipeline := bson.A{
		inRange,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total_amount"}}},
		}}},
	}

	cursor, err := collection.Aggregate(ctx, statusPipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate order status: %w", err)
	}
	var byStatus []models.StatusCount
	if err := cursor.All(ctx, &byStatus); err != nil {
		return nil, fmt.Errorf("decode order status: %w", err)
	}

	topPipeline := bson.A{
		inRange,
		bson.D{{Key: "$match", Value: bson.D{{Key: "status", Value: bson.D{{Key: "$ne", Value: models.OrderCancelled}}}}}},
		bson.D{{Key: "$unwind", Value: "$items"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.product_id"},
			{Key: "name", Value: bson.D{{Key: "$first", Value: "$items.name"}}},
			{Key: "quantity", Value: bson.D{{Key: "$sum", Value: "$items.quantity"}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$items.subtotal"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "quantity", Value: -1}}}},
		bson.D{{Key: "$limit", Value: 5}},
	}

	cursor, err = collection.Aggregate(ctx, topPipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate top products: %w", err)
	}
	var topProducts []models.TopProduct
	if err := cursor.All(ctx, &topProducts); err != nil {
		return nil, fmt.Errorf("decode top products: %w", err)
	}

	summary := &models.SalesSummary{From: from, To: to, TopProducts: topProducts}
	order := make(map[models.OrderStatus]models.StatusCount, len(byStatus))
	for _, sc := range byStatus {
		order[sc.Status] = sc
		summary.TotalOrders += sc.Orders
		if sc.Status != models.OrderCancelled {
			summary.Revenue += sc.Revenue
		}
	}
	for _, status := range models.OrderStatuses {
		if sc, ok := order[status]; ok {
			summary.ByStatus = append(summary.ByStatus, sc)
		}
	}
	return summary, nil
}
