package shop

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/events"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store/memory"
)

type fixture struct {
	db        *memory.Store
	orders    *OrderLifecycle
	carts     *Carts
	catalog   *Catalog
	publisher *recordingPublisher
	cache     *recordingCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	publisher := &recordingPublisher{}
	cache := &recordingCache{}
	logger := zap.NewNop()
	return &fixture{
		db:        db,
		orders:    NewOrderLifecycle(db, logger, WithPublisher(publisher), WithProductCache(cache)),
		carts:     NewCarts(db, logger),
		catalog:   NewCatalog(db, logger, WithProductCache(cache)),
		publisher: publisher,
		cache:     cache,
	}
}

func (f *fixture) product(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), &models.CreateProductRequest{
		Name:     name,
		Category: "General",
		Price:    price,
		Stock:    stock,
	}, "test")
	require.NoError(t, err)
	return p
}

func (f *fixture) addToCart(t *testing.T, userID, productID bson.ObjectID, quantity int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, quantity)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID bson.ObjectID) int {
	t.Helper()
	p, err := f.db.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingCache struct {
	mu          sync.Mutex
	products    map[bson.ObjectID]models.Product
	invalidated []bson.ObjectID
}

func (c *recordingCache) Get(_ context.Context, id bson.ObjectID) (*models.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *recordingCache) Put(_ context.Context, product *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products == nil {
		c.products = make(map[bson.ObjectID]models.Product)
	}
	c.products[product.ID] = *product
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...bson.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}
