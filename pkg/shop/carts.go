package shop

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

// Carts edits a user's cart. Edits are checked against current stock but reserve
// nothing; stock is only taken at checkout.
type Carts struct {
	db       store.Datastore
	snapshot *CartSnapshot
	logger   *zap.Logger
}

func NewCarts(db store.Datastore, logger *zap.Logger) *Carts {
	return &Carts{db: db, snapshot: NewCartSnapshot(db), logger: logger}
}

func (c *Carts) GetCart(ctx context.Context, userID bson.ObjectID) (*models.CartView, error) {
	cart, err := c.db.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return c.snapshot.view(ctx, cart)
}

// AddItem adds quantity units of a product, merging with an existing line. The
// merged quantity may not exceed the product's stock.
func (c *Carts) AddItem(ctx context.Context, userID, productID bson.ObjectID, quantity int) (*models.CartView, error) {
	if quantity <= 0 {
		return nil, invalidInput("quantity must be at least 1")
	}

	err := c.edit(ctx, userID, func(ctx context.Context, tx store.Tx, cart *models.Cart) error {
		product, err := getProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		merged := quantity
		if i := cart.Find(productID); i >= 0 {
			merged += cart.Items[i].Quantity
		}
		if merged > product.Stock {
			return &StockError{ProductID: productID, Name: product.Name, Requested: merged, Available: product.Stock}
		}
		cart.SetQuantity(productID, merged)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Cart item added",
		zap.String("user_id", userID.Hex()),
		zap.String("product_id", productID.Hex()),
		zap.Int("quantity", quantity))
	return c.GetCart(ctx, userID)
}

// UpdateItem replaces the quantity of an existing line.
func (c *Carts) UpdateItem(ctx context.Context, userID, productID bson.ObjectID, quantity int) (*models.CartView, error) {
	if quantity <= 0 {
		return nil, invalidInput("quantity must be at least 1")
	}

	err := c.edit(ctx, userID, func(ctx context.Context, tx store.Tx, cart *models.Cart) error {
		if cart.Find(productID) < 0 {
			return notFound("cart item", productID)
		}
		product, err := getProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return &StockError{ProductID: productID, Name: product.Name, Requested: quantity, Available: product.Stock}
		}
		cart.SetQuantity(productID, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.GetCart(ctx, userID)
}

func (c *Carts) RemoveItem(ctx context.Context, userID, productID bson.ObjectID) (*models.CartView, error) {
	err := c.edit(ctx, userID, func(_ context.Context, _ store.Tx, cart *models.Cart) error {
		if !cart.Remove(productID) {
			return notFound("cart item", productID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.GetCart(ctx, userID)
}

func (c *Carts) Clear(ctx context.Context, userID bson.ObjectID) error {
	return translate(c.db.ClearCart(ctx, userID))
}

// edit loads the cart, applies change and saves it in one transaction.
func (c *Carts) edit(ctx context.Context, userID bson.ObjectID, change func(context.Context, store.Tx, *models.Cart) error) error {
	err := c.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		cart, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return translate(err)
		}
		if err := change(ctx, tx, cart); err != nil {
			return err
		}
		return translate(tx.SaveCart(ctx, cart))
	})
	return translate(err)
}

func getProduct(ctx context.Context, db store.Tx, id bson.ObjectID) (*models.Product, error) {
	product, err := db.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, translate(err)
	}
	return product, nil
}
