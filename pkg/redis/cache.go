package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

const recentKey = "products:recent"

// ProductCache keeps JSON copies of products under product:{id}.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func productKey(id bson.ObjectID) string {
	return fmt.Sprintf("product:%s", id.Hex())
}

func (c *ProductCache) Get(ctx context.Context, id bson.ObjectID) (*models.Product, bool, error) {
	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &product, true, nil
}

// Put stores the product and records it at the head of the recently viewed list.
func (c *ProductCache) Put(ctx context.Context, product *models.Product) error {
	productJSON, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.ID.Hex(), err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, productKey(product.ID), productJSON, c.ttl)
	pipe.LRem(ctx, recentKey, 0, product.ID.Hex())
	pipe.LPush(ctx, recentKey, product.ID.Hex())
	// Keep only the 100 most recent products
	pipe.LTrim(ctx, recentKey, 0, 99)
	pipe.Expire(ctx, recentKey, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute Redis pipeline for product %s: %w", product.ID.Hex(), err)
	}
	return nil
}

func (c *ProductCache) Invalidate(ctx context.Context, ids ...bson.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, productKey(id))
		pipe.LRem(ctx, recentKey, 0, id.Hex())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove products from Redis cache: %w", err)
	}
	return nil
}

// Recent returns up to n product ids, most recently viewed first.
func (c *ProductCache) Recent(ctx context.Context, n int) ([]bson.ObjectID, error) {
	values, err := c.client.LRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]bson.ObjectID, 0, len(values))
	for _, v := range values {
		id, err := bson.ObjectIDFromHex(v)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
