// Package store defines the persistence contract shared by the MongoDB and in-memory
// drivers. Every method on Tx must behave the same whether it runs on the Datastore
// directly or inside WithTransaction.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrDuplicate         = errors.New("store: duplicate key")
	ErrInsufficientStock = errors.New("store: insufficient stock")
	ErrStatusConflict    = errors.New("store: order status changed concurrently")
	// ErrTxAborted marks a transaction that was rolled back by the datastore itself
	// (write conflict, timeout). Nothing was persisted and the caller may retry.
	ErrTxAborted = errors.New("store: transaction aborted")
)

type Page struct {
	Page  int
	Limit int
}

func (p Page) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}

type ProductFilter struct {
	Category  string
	Search    string
	SortBy    string // created_at, price, name, stock
	SortOrder string // asc, desc
	Page
}

type OrderFilter struct {
	UserID *bson.ObjectID
	Status models.OrderStatus
	Page
}

type UserFilter struct {
	Role   models.Role
	Search string
	Page
}

// Tx is the set of operations available both on the datastore and inside a transaction.
type Tx interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int64, error)

	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	// UpdateProduct writes the descriptive fields and price. Stock is only ever
	// changed through AdjustStock.
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id bson.ObjectID) error
	// AdjustStock adds delta to the product's stock in one atomic step and returns the
	// product after the change. A negative delta that would take stock below zero
	// fails with ErrInsufficientStock and changes nothing.
	AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Product, error)
	AppendInventoryLog(ctx context.Context, entry *models.InventoryLog) error
	ListInventoryLogs(ctx context.Context, productID bson.ObjectID, page Page) ([]models.InventoryLog, int64, error)

	GetOrCreateCart(ctx context.Context, userID bson.ObjectID) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	ClearCart(ctx context.Context, userID bson.ObjectID) error

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	// UpdateOrderStatus writes order.Status, order.Timeline and order.UpdatedAt. When
	// expect is non-empty the write only happens if the stored status still equals
	// expect, otherwise ErrStatusConflict.
	UpdateOrderStatus(ctx context.Context, order *models.Order, expect models.OrderStatus) error
	SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error)
}

// Datastore is a Tx with a transaction boundary. WithTransaction commits when work
// returns nil and rolls back on any error or panic; the error from work is returned
// unchanged.
type Datastore interface {
	Tx
	WithTransaction(ctx context.Context, work func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
