package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

func TestCatalogCreateValidates(t *testing.T) {
	f := newFixture(t)
	cases := []models.CreateProductRequest{
		{Name: " ", Category: "General", Price: 100},
		{Name: "Thing", Category: "", Price: 100},
		{Name: "Thing", Category: "General", Price: 0},
		{Name: "Thing", Category: "General", Price: 100, Stock: -1},
	}
	for _, req := range cases {
		_, err := f.catalog.CreateProduct(context.Background(), &req, "admin")
		assert.ErrorIs(t, err, ErrInvalidInput, req)
	}
}

func TestCatalogGetProductReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Clock", 2000, 1)

	got, hit, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Clock", got.Name)

	got, hit, err = f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, p.ID, got.ID)

	name := "Wall Clock"
	_, err = f.catalog.UpdateProduct(ctx, p.ID, &models.UpdateProductRequest{Name: &name}, "admin")
	require.NoError(t, err)

	got, hit, err = f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Wall Clock", got.Name)

	_, _, err = f.catalog.GetProduct(ctx, bson.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogUpdateStockGoesThroughLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Vase", 3500, 4)

	stock := 9
	updated, err := f.catalog.UpdateProduct(ctx, p.ID, &models.UpdateProductRequest{Stock: &stock}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, 9, f.stock(t, p.ID))

	history, err := f.catalog.InventoryHistory(ctx, p.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	latest := history.Items[0]
	assert.Equal(t, models.ChangeAdjustment, latest.ChangeType)
	assert.Equal(t, 4, latest.QuantityBefore)
	assert.Equal(t, 9, latest.QuantityAfter)
	assert.Equal(t, "admin", latest.PerformedBy)

	_, err = f.catalog.UpdateProduct(ctx, p.ID, &models.UpdateProductRequest{}, "admin")
	assert.ErrorIs(t, err, ErrInvalidInput)

	negative := -1
	_, err = f.catalog.UpdateProduct(ctx, p.ID, &models.UpdateProductRequest{Stock: &negative}, "admin")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.catalog.UpdateProduct(ctx, bson.NewObjectID(), &models.UpdateProductRequest{Stock: &stock}, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogListProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "Apple Juice", 300, 10)
	f.product(t, "Banana Bread", 700, 5)
	f.product(t, "Cherry Jam", 500, 0)

	byPrice, err := f.catalog.ListProducts(ctx, ProductQuery{SortBy: "price", SortOrder: "ASC"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, byPrice.Items, 3)
	assert.Equal(t, "Apple Juice", byPrice.Items[0].Name)
	assert.Equal(t, "Banana Bread", byPrice.Items[2].Name)

	search, err := f.catalog.ListProducts(ctx, ProductQuery{Search: "JAM"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.Equal(t, "Cherry Jam", search.Items[0].Name)

	second, err := f.catalog.ListProducts(ctx, ProductQuery{SortBy: "bogus"}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, 2, second.Pagination.TotalPages)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Rug", 9000, 1)

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
	assert.Contains(t, f.cache.invalidated, p.ID)
	assert.ErrorIs(t, f.catalog.DeleteProduct(ctx, p.ID), ErrNotFound)
}

type listingCache struct {
	recordingCache
	recent []bson.ObjectID
}

func (c *listingCache) Recent(_ context.Context, n int) ([]bson.ObjectID, error) {
	if n < len(c.recent) {
		return c.recent[:n], nil
	}
	return c.recent, nil
}

func TestCatalogRecentProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "Alpha", 100, 1)
	b := f.product(t, "Beta", 100, 1)

	empty, err := f.catalog.RecentProducts(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	cache := &listingCache{recent: []bson.ObjectID{b.ID, bson.NewObjectID(), a.ID}}
	catalog := NewCatalog(f.db, zap.NewNop(), WithProductCache(cache))

	recent, err := catalog.RecentProducts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Beta", recent[0].Name)
	assert.Equal(t, "Alpha", recent[1].Name)
}
