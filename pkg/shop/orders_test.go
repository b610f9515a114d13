package shop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/events"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

func TestPlaceOrderAndCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Keyboard", 2500, 5)
	user := bson.NewObjectID()

	f.addToCart(t, user, p.ID, 3)

	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, int64(3*2500), order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(2500), order.Items[0].Price)
	assert.Equal(t, 2, f.stock(t, p.ID))

	cart, err := f.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	cancelled, err := f.orders.CancelOrder(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.Timeline.CancelledAt)
	assert.Equal(t, 5, f.stock(t, p.ID))

	assert.Equal(t, []events.Type{events.OrderPlaced, events.OrderCancelled}, f.publisher.types())
	assert.Contains(t, f.cache.invalidated, p.ID)
}

func TestCancelOrderTwiceRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Mouse", 900, 4)
	user := bson.NewObjectID()
	f.addToCart(t, user, p.ID, 2)

	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, user, order.ID)
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, user, order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.OrderCancelled, transition.From)

	assert.Equal(t, 4, f.stock(t, p.ID))

	history, err := f.catalog.InventoryHistory(ctx, p.ID, 1, 50)
	require.NoError(t, err)
	var returns int
	for _, entry := range history.Items {
		if entry.ChangeType == models.ChangeReturn {
			returns++
		}
	}
	assert.Equal(t, 1, returns)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := bson.NewObjectID()

	_, err := f.orders.PlaceOrder(ctx, user)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, total, err := f.db.ListOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.publisher.types())
}

func TestPlaceOrderInsufficientStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plenty := f.product(t, "Cable", 500, 10)
	scarce := f.product(t, "Monitor", 30000, 3)
	user := bson.NewObjectID()

	f.addToCart(t, user, plenty.ID, 4)
	f.addToCart(t, user, scarce.ID, 3)

	// someone else buys one monitor in the meantime
	other := bson.NewObjectID()
	f.addToCart(t, other, scarce.ID, 1)
	_, err := f.orders.PlaceOrder(ctx, other)
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, user)
	require.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarce.ID, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	assert.Equal(t, 10, f.stock(t, plenty.ID))
	assert.Equal(t, 2, f.stock(t, scarce.ID))

	cart, err := f.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	mine, err := f.orders.GetUserOrders(ctx, user, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, mine.Pagination.TotalCount)
}

func TestPlaceOrderFreezesPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Lamp", 4000, 10)
	user := bson.NewObjectID()
	f.addToCart(t, user, p.ID, 2)

	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)

	newPrice := int64(9999)
	_, err = f.catalog.UpdateProduct(ctx, p.ID, &models.UpdateProductRequest{Price: &newPrice}, "admin")
	require.NoError(t, err)

	stored, err := f.orders.GetOrder(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), stored.TotalAmount)
	assert.Equal(t, int64(4000), stored.Items[0].Price)
	assert.Equal(t, int64(8000), stored.Items[0].Subtotal)
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Last One", 1000, 1)

	users := []bson.ObjectID{bson.NewObjectID(), bson.NewObjectID()}
	for _, u := range users {
		f.addToCart(t, u, p.ID, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u bson.ObjectID) {
			defer wg.Done()
			_, errs[i] = f.orders.PlaceOrder(ctx, u)
		}(i, u)
	}
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestStockNeverNegativeAcrossSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Widget", 100, 3)

	var placed []*models.Order
	for i := 0; i < 5; i++ {
		user := bson.NewObjectID()
		if _, err := f.carts.AddItem(ctx, user, p.ID, 1); err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			continue
		}
		order, err := f.orders.PlaceOrder(ctx, user)
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
		} else {
			placed = append(placed, order)
		}
		assert.GreaterOrEqual(t, f.stock(t, p.ID), 0)
	}
	assert.Len(t, placed, 3)
	assert.Equal(t, 0, f.stock(t, p.ID))

	for _, order := range placed {
		_, err := f.orders.CancelOrder(ctx, order.UserID, order.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.stock(t, p.ID))
}

func TestCancelOrderScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Chair", 7000, 2)
	owner := bson.NewObjectID()
	f.addToCart(t, owner, p.ID, 1)
	order, err := f.orders.PlaceOrder(ctx, owner)
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, bson.NewObjectID(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.orders.GetOrder(ctx, bson.NewObjectID(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.orders.CancelOrder(ctx, owner, bson.NewObjectID())
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, f.stock(t, p.ID))
}

func TestCancelOrderAfterProcessing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Desk", 15000, 2)
	user := bson.NewObjectID()
	f.addToCart(t, user, p.ID, 1)
	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)

	_, err = f.orders.SetStatus(ctx, order.ID, "PROCESSING", "admin")
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, user, order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, f.stock(t, p.ID))
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Pen", 150, 20)
	user := bson.NewObjectID()
	f.addToCart(t, user, p.ID, 5)
	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)

	t.Run("rejects unknown and lower-case values", func(t *testing.T) {
		for _, value := range []string{"", "shipped", "LOST"} {
			_, err := f.orders.SetStatus(ctx, order.ID, value, "admin")
			require.ErrorIs(t, err, ErrInvalidStatus, value)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, value, statusErr.Value)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.orders.SetStatus(ctx, bson.NewObjectID(), "SHIPPED", "admin")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("shipping stamps the timeline", func(t *testing.T) {
		updated, err := f.orders.SetStatus(ctx, order.ID, "SHIPPED", "admin")
		require.NoError(t, err)
		assert.Equal(t, models.OrderShipped, updated.Status)
		assert.NotNil(t, updated.Timeline.ShippedAt)
		assert.NotNil(t, updated.Timeline.EstimatedDelivery)
		assert.Equal(t, 15, f.stock(t, p.ID))
	})

	t.Run("any status may be set and only pending cancellation releases", func(t *testing.T) {
		updated, err := f.orders.SetStatus(ctx, order.ID, "CANCELLED", "admin")
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, updated.Status)
		assert.Equal(t, 15, f.stock(t, p.ID))
	})

	assert.Contains(t, f.publisher.types(), events.OrderStatusChanged)
}

func TestSetStatusCancelFromPendingReleasesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Bottle", 1200, 6)
	user := bson.NewObjectID()
	f.addToCart(t, user, p.ID, 6)
	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 0, f.stock(t, p.ID))

	_, err = f.orders.SetStatus(ctx, order.ID, "CANCELLED", "admin")
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, p.ID))

	_, err = f.orders.CancelOrder(ctx, user, order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 6, f.stock(t, p.ID))
}

func TestCancelOrderSkipsDeletedProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kept := f.product(t, "Kept", 100, 5)
	gone := f.product(t, "Gone", 100, 5)
	user := bson.NewObjectID()
	f.addToCart(t, user, kept.ID, 2)
	f.addToCart(t, user, gone.ID, 2)
	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteProduct(ctx, gone.ID))

	_, err = f.orders.CancelOrder(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(t, kept.ID))
}

func TestPublishFailureDoesNotFailCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	p := f.product(t, "Hat", 800, 3)
	user := bson.NewObjectID()
	f.addToCart(t, user, p.ID, 1)

	order, err := f.orders.PlaceOrder(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
}

func TestGetAllOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Sock", 300, 100)

	alice, bob := bson.NewObjectID(), bson.NewObjectID()
	var aliceOrders []*models.Order
	for i := 0; i < 3; i++ {
		f.addToCart(t, alice, p.ID, 1)
		o, err := f.orders.PlaceOrder(ctx, alice)
		require.NoError(t, err)
		aliceOrders = append(aliceOrders, o)
	}
	f.addToCart(t, bob, p.ID, 1)
	_, err := f.orders.PlaceOrder(ctx, bob)
	require.NoError(t, err)

	_, err = f.orders.SetStatus(ctx, aliceOrders[0].ID, "DELIVERED", "admin")
	require.NoError(t, err)

	all, err := f.orders.GetAllOrders(ctx, OrderQuery{}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 2, TotalCount: 4, TotalPages: 2}, all.Pagination)

	delivered, err := f.orders.GetAllOrders(ctx, OrderQuery{Status: "delivered"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, delivered.Items, 1)
	assert.Equal(t, aliceOrders[0].ID, delivered.Items[0].ID)

	byUser, err := f.orders.GetAllOrders(ctx, OrderQuery{UserID: bob.Hex()}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byUser.Pagination.TotalCount)
	assert.Equal(t, 10, byUser.Pagination.Limit)

	_, err = f.orders.GetAllOrders(ctx, OrderQuery{Status: "lost"}, 1, 10)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.orders.GetAllOrders(ctx, OrderQuery{UserID: "nope"}, 1, 10)
	require.ErrorIs(t, err, ErrInvalidInput)

	mine, err := f.orders.GetUserOrders(ctx, alice, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Pagination.TotalCount)
}
