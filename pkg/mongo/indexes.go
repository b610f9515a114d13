package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

var requiredIndexes = []IndexConfig{
	// Users Collection Indexes
	{
		CollectionName: usersCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_user_email_unique"),
		},
	},

	// Products Collection Indexes
	{
		CollectionName: productsCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_category"),
		},
	},
	{
		CollectionName: productsCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_product_created"),
		},
	},
	// Low-stock alerts
	{
		CollectionName: productsCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "stock", Value: 1}},
			Options: options.Index().SetName("idx_stock_alert"),
		},
	},

	// Carts Collection Indexes
	// One cart per user
	{
		CollectionName: cartsCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_cart_user_unique"),
		},
	},

	// Orders Collection Indexes
	// Customer order history
	{
		CollectionName: ordersCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_user_orders"),
		},
	},
	// Admin listing by status
	{
		CollectionName: ordersCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_status_created"),
		},
	},
	{
		CollectionName: ordersCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_order_number_unique"),
		},
	},

	// Inventory Logs Collection Indexes
	// Product history lookup
	{
		CollectionName: inventoryLogsCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_product_history"),
		},
	},
}

// EnsureIndexes creates every required index. Creating an index that already exists
// with the same definition is a no-op on the server.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	s.logger.Info("Starting index creation...")

	for _, idxConfig := range requiredIndexes {
		collection := s.db.Collection(idxConfig.CollectionName)

		indexName, err := collection.Indexes().CreateOne(ctx, idxConfig.IndexModel)
		if err != nil {
			return fmt.Errorf("create index on %s: %w", idxConfig.CollectionName, err)
		}

		s.logger.Debug("Created index",
			zap.String("index", indexName),
			zap.String("collection", idxConfig.CollectionName))
	}

	s.logger.Info("All indexes created successfully", zap.Int("count", len(requiredIndexes)))
	return nil
}
