package shop

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

// Line is a cart item priced at the moment the snapshot was taken.
type Line struct {
	ProductID bson.ObjectID
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// Snapshot is an immutable, priced copy of a cart.
type Snapshot struct {
	CartID     bson.ObjectID
	UserID     bson.ObjectID
	Lines      []Line
	Total      int64
	CapturedAt time.Time
}

// CartSnapshot materialises a user's cart against live product prices. It never
// writes apart from lazily creating the cart.
type CartSnapshot struct {
	db store.Tx
}

func NewCartSnapshot(db store.Tx) *CartSnapshot {
	return &CartSnapshot{db: db}
}

func (c *CartSnapshot) Within(tx store.Tx) *CartSnapshot {
	return &CartSnapshot{db: tx}
}

// Materialize fails with ErrEmptyCart when the cart holds nothing and with a
// *NotFoundError when a line points at a product that no longer exists.
func (c *CartSnapshot) Materialize(ctx context.Context, userID bson.ObjectID) (*Snapshot, error) {
	cart, err := c.db.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	snap := &Snapshot{
		CartID:     cart.ID,
		UserID:     userID,
		Lines:      make([]Line, 0, len(cart.Items)),
		CapturedAt: time.Now().UTC(),
	}
	for _, item := range cart.Items {
		product, err := c.db.GetProduct(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("product", item.ProductID)
		}
		if err != nil {
			return nil, translate(err)
		}

		line := Line{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			LineTotal: product.Price * int64(item.Quantity),
		}
		snap.Lines = append(snap.Lines, line)
		snap.Total += line.LineTotal
	}
	return snap, nil
}

// view prices a cart for display. Lines whose product has been deleted are left out.
func (c *CartSnapshot) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	view := &models.CartView{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     make([]models.CartLine, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		product, err := c.db.GetProduct(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, translate(err)
		}

		line := models.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			LineTotal: product.Price * int64(item.Quantity),
			Stock:     product.Stock,
		}
		view.Items = append(view.Items, line)
		view.ItemCount += line.Quantity
		view.Total += line.LineTotal
	}
	return view, nil
}
