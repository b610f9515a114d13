package shop

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

var productSorts = map[string]bool{"created_at": true, "price": true, "name": true, "stock": true}

type ProductQuery struct {
	Category  string
	Search    string
	SortBy    string
	SortOrder string
}

// Catalog manages products. Stock changes made here go through the inventory ledger
// so they show up in the product's history.
type Catalog struct {
	db     store.Datastore
	ledger *InventoryLedger
	collaborators
	logger *zap.Logger
}

func NewCatalog(db store.Datastore, logger *zap.Logger, opts ...Option) *Catalog {
	return &Catalog{
		db:            db,
		ledger:        NewInventoryLedger(db, logger),
		collaborators: newCollaborators(opts),
		logger:        logger,
	}
}

func (c *Catalog) ListProducts(ctx context.Context, query ProductQuery, page, limit int) (*models.PagedResult[models.Product], error) {
	page, limit = models.ClampPage(page, limit)
	filter := store.ProductFilter{
		Category:  strings.TrimSpace(query.Category),
		Search:    strings.TrimSpace(query.Search),
		SortBy:    "created_at",
		SortOrder: "desc",
		Page:      store.Page{Page: page, Limit: limit},
	}
	if productSorts[query.SortBy] {
		filter.SortBy = query.SortBy
	}
	if strings.EqualFold(query.SortOrder, "asc") {
		filter.SortOrder = "asc"
	}

	rows, total, err := c.db.ListProducts(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return paged(rows, page, limit, total), nil
}

// GetProduct reads through the product cache. The bool reports a cache hit.
func (c *Catalog) GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, bool, error) {
	cached, hit, err := c.cache.Get(ctx, id)
	if err != nil {
		c.logger.Warn("Product cache read failed", zap.String("product_id", id.Hex()), zap.Error(err))
	}
	if hit {
		return cached, true, nil
	}

	product, err := getProduct(ctx, c.db, id)
	if err != nil {
		return nil, false, err
	}
	if err := c.cache.Put(ctx, product); err != nil {
		c.logger.Warn("Product cache write failed", zap.String("product_id", id.Hex()), zap.Error(err))
	}
	return product, false, nil
}

// CreateProduct stores a new product. Opening stock is logged as an adjustment.
func (c *Catalog) CreateProduct(ctx context.Context, req *models.CreateProductRequest, performedBy string) (*models.Product, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Category) == "" {
		return nil, invalidInput("name and category are required")
	}
	if req.Price <= 0 {
		return nil, invalidInput("price must be positive")
	}
	if req.Stock < 0 {
		return nil, invalidInput("stock cannot be negative")
	}

	product := req.ToProduct()
	err := c.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateProduct(ctx, product); err != nil {
			return translate(err)
		}
		if product.Stock == 0 {
			return nil
		}
		entry := models.NewInventoryLog(product.ID, models.ChangeAdjustment, 0, product.Stock, "initial stock", performedBy)
		return translate(tx.AppendInventoryLog(ctx, entry))
	})
	if err != nil {
		return nil, translate(err)
	}

	c.logger.Info("Product created", zap.String("product_id", product.ID.Hex()), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies a partial update. A new stock value is written as a ledger
// adjustment relative to the stock read inside the transaction.
func (c *Catalog) UpdateProduct(ctx context.Context, id bson.ObjectID, req *models.UpdateProductRequest, performedBy string) (*models.Product, error) {
	if req.IsEmpty() {
		return nil, invalidInput("no fields to update")
	}
	if req.Price != nil && *req.Price <= 0 {
		return nil, invalidInput("price must be positive")
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, invalidInput("stock cannot be negative")
	}
	if (req.Name != nil && strings.TrimSpace(*req.Name) == "") || (req.Category != nil && strings.TrimSpace(*req.Category) == "") {
		return nil, invalidInput("name and category cannot be blank")
	}

	var updated *models.Product
	err := c.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		product, err := getProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		current := product.Stock
		req.Apply(product)
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return translate(err)
		}

		product.Stock = current
		if req.Stock != nil && *req.Stock != current {
			audit := Audit{Reference: "manual adjustment", PerformedBy: performedBy}
			adjusted, err := c.ledger.Within(tx).Adjust(ctx, id, *req.Stock-current, audit)
			if err != nil {
				return err
			}
			product.Stock = adjusted.Stock
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	c.invalidate(ctx, id)
	c.logger.Info("Product updated", zap.String("product_id", id.Hex()))
	return updated, nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id bson.ObjectID) error {
	err := c.db.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("product", id)
	}
	if err != nil {
		return translate(err)
	}

	c.invalidate(ctx, id)
	c.logger.Info("Product deleted", zap.String("product_id", id.Hex()))
	return nil
}

// InventoryHistory lists the product's stock moves, newest first.
func (c *Catalog) InventoryHistory(ctx context.Context, id bson.ObjectID, page, limit int) (*models.PagedResult[models.InventoryLog], error) {
	page, limit = models.ClampPage(page, limit)
	rows, total, err := c.db.ListInventoryLogs(ctx, id, store.Page{Page: page, Limit: limit})
	if err != nil {
		return nil, translate(err)
	}
	return paged(rows, page, limit, total), nil
}

// recentLister is implemented by caches that track recently viewed products.
type recentLister interface {
	Recent(ctx context.Context, n int) ([]bson.ObjectID, error)
}

// RecentProducts returns up to n recently viewed products that still exist. Without
// a tracking cache the list is empty.
func (c *Catalog) RecentProducts(ctx context.Context, n int) ([]models.Product, error) {
	products := []models.Product{}
	lister, ok := c.cache.(recentLister)
	if !ok {
		return products, nil
	}
	if n < 1 || n > 100 {
		n = 10
	}

	ids, err := lister.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		// read without Put so listing does not reorder the list
		product, hit, err := c.cache.Get(ctx, id)
		if err != nil || !hit {
			product, err = getProduct(ctx, c.db, id)
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, nil
}

func (c *Catalog) invalidate(ctx context.Context, id bson.ObjectID) {
	if err := c.cache.Invalidate(ctx, id); err != nil {
		c.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id.Hex()), zap.Error(err))
	}
}
