// Package memory is an in-process store.Datastore. Transactions are serialised by a
// single mutex and run against a copy of the data that replaces the live state only
// on commit, so an error anywhere in the unit of work leaves no trace.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

type Store struct {
	mu    sync.Mutex
	state *state
}

var _ store.Datastore = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithTransaction(ctx context.Context, work func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := work(ctx, working); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateUser(ctx, user)
}

func (s *Store) GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetUserByID(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListUsers(ctx, filter)
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateProduct(ctx, product)
}

func (s *Store) GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListProducts(ctx, filter)
}

func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateProduct(ctx, product)
}

func (s *Store) DeleteProduct(ctx context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteProduct(ctx, id)
}

func (s *Store) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AdjustStock(ctx, id, delta)
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AppendInventoryLog(ctx, entry)
}

func (s *Store) ListInventoryLogs(ctx context.Context, productID bson.ObjectID, page store.Page) ([]models.InventoryLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListInventoryLogs(ctx, productID, page)
}

func (s *Store) GetOrCreateCart(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetOrCreateCart(ctx, userID)
}

func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SaveCart(ctx, cart)
}

func (s *Store) ClearCart(ctx context.Context, userID bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ClearCart(ctx, userID)
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateOrder(ctx, order)
}

func (s *Store) GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListOrders(ctx, filter)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order, expect models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateOrderStatus(ctx, order, expect)
}

func (s *Store) SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SalesSummary(ctx, from, to)
}

// state holds the data; it is never shared between a transaction and the live store.
type state struct {
	users         map[bson.ObjectID]models.User
	products      map[bson.ObjectID]models.Product
	carts         map[bson.ObjectID]models.Cart // keyed by user id
	orders        map[bson.ObjectID]models.Order
	inventoryLogs []models.InventoryLog
}

var _ store.Tx = (*state)(nil)

func newState() *state {
	return &state{
		users:    make(map[bson.ObjectID]models.User),
		products: make(map[bson.ObjectID]models.Product),
		carts:    make(map[bson.ObjectID]models.Cart),
		orders:   make(map[bson.ObjectID]models.Order),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = v.Clone()
	}
	for k, v := range st.orders {
		c.orders[k] = v.Clone()
	}
	c.inventoryLogs = append([]models.InventoryLog(nil), st.inventoryLogs...)
	return c
}

func (st *state) CreateUser(_ context.Context, user *models.User) error {
	for _, u := range st.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	st.users[user.ID] = *user
	return nil
}

func (st *state) GetUserByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (st *state) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (st *state) ListUsers(_ context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	search := strings.ToLower(filter.Search)
	var rows []models.User
	for _, u := range st.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Email, search) {
			continue
		}
		rows = append(rows, u)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return paginate(rows, filter.Page), int64(len(rows)), nil
}

func (st *state) CreateProduct(_ context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = bson.NewObjectID()
	}
	if _, exists := st.products[product.ID]; exists {
		return store.ErrDuplicate
	}
	st.products[product.ID] = *product
	return nil
}

func (st *state) GetProduct(_ context.Context, id bson.ObjectID) (*models.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (st *state) ListProducts(_ context.Context, filter store.ProductFilter) ([]models.Product, int64, error) {
	search := strings.ToLower(filter.Search)
	var rows []models.Product
	for _, p := range st.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		rows = append(rows, p)
	}
	desc := filter.SortOrder != "asc"
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if desc {
			a, b = b, a
		}
		switch filter.SortBy {
		case "price":
			return a.Price < b.Price
		case "name":
			return a.Name < b.Name
		case "stock":
			return a.Stock < b.Stock
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return paginate(rows, filter.Page), int64(len(rows)), nil
}

func (st *state) UpdateProduct(_ context.Context, product *models.Product) error {
	existing, ok := st.products[product.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *product
	updated.Stock = existing.Stock
	updated.CreatedAt = existing.CreatedAt
	st.products[product.ID] = updated
	return nil
}

func (st *state) DeleteProduct(_ context.Context, id bson.ObjectID) error {
	if _, ok := st.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(st.products, id)
	return nil
}

func (st *state) AdjustStock(_ context.Context, id bson.ObjectID, delta int) (*models.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	st.products[id] = p
	return &p, nil
}

func (st *state) AppendInventoryLog(_ context.Context, entry *models.InventoryLog) error {
	if entry.ID.IsZero() {
		entry.ID = bson.NewObjectID()
	}
	st.inventoryLogs = append(st.inventoryLogs, *entry)
	return nil
}

func (st *state) ListInventoryLogs(_ context.Context, productID bson.ObjectID, page store.Page) ([]models.InventoryLog, int64, error) {
	var rows []models.InventoryLog
	for i := len(st.inventoryLogs) - 1; i >= 0; i-- {
		if st.inventoryLogs[i].ProductID == productID {
			rows = append(rows, st.inventoryLogs[i])
		}
	}
	return paginate(rows, page), int64(len(rows)), nil
}

func (st *state) GetOrCreateCart(_ context.Context, userID bson.ObjectID) (*models.Cart, error) {
	cart, ok := st.carts[userID]
	if !ok {
		cart = *models.NewCart(userID)
		st.carts[userID] = cart
	}
	c := cart.Clone()
	return &c, nil
}

func (st *state) SaveCart(_ context.Context, cart *models.Cart) error {
	existing, ok := st.carts[cart.UserID]
	if ok && existing.ID != cart.ID {
		return store.ErrDuplicate
	}
	st.carts[cart.UserID] = cart.Clone()
	return nil
}

func (st *state) ClearCart(_ context.Context, userID bson.ObjectID) error {
	cart, ok := st.carts[userID]
	if !ok {
		return nil
	}
	cart.Items = []models.CartItem{}
	cart.UpdatedAt = time.Now().UTC()
	st.carts[userID] = cart
	return nil
}

func (st *state) CreateOrder(_ context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = bson.NewObjectID()
	}
	for _, o := range st.orders {
		if o.OrderNumber == order.OrderNumber {
			return store.ErrDuplicate
		}
	}
	st.orders[order.ID] = order.Clone()
	return nil
}

func (st *state) GetOrder(_ context.Context, id bson.ObjectID) (*models.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (st *state) ListOrders(_ context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	var rows []models.Order
	for _, o := range st.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		rows = append(rows, o.Clone())
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.Hex() > rows[j].ID.Hex()
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return paginate(rows, filter.Page), int64(len(rows)), nil
}

func (st *state) UpdateOrderStatus(_ context.Context, order *models.Order, expect models.OrderStatus) error {
	stored, ok := st.orders[order.ID]
	if !ok {
		return store.ErrNotFound
	}
	if expect != "" && stored.Status != expect {
		return store.ErrStatusConflict
	}
	stored.Status = order.Status
	stored.Timeline = order.Timeline
	stored.UpdatedAt = order.UpdatedAt
	st.orders[order.ID] = stored
	return nil
}

func (st *state) SalesSummary(_ context.Context, from, to time.Time) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{From: from, To: to}
	byStatus := make(map[models.OrderStatus]*models.StatusCount)
	byProduct := make(map[bson.ObjectID]*models.TopProduct)

	for _, o := range st.orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		sc, ok := byStatus[o.Status]
		if !ok {
			sc = &models.StatusCount{Status: o.Status}
			byStatus[o.Status] = sc
		}
		sc.Orders++
		sc.Revenue += o.TotalAmount
		summary.TotalOrders++
		if o.Status == models.OrderCancelled {
			continue
		}
		summary.Revenue += o.TotalAmount
		for _, item := range o.Items {
			tp, ok := byProduct[item.ProductID]
			if !ok {
				tp = &models.TopProduct{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = tp
			}
			tp.Quantity += int64(item.Quantity)
			tp.Revenue += item.Subtotal
		}
	}

	for _, status := range models.OrderStatuses {
		if sc, ok := byStatus[status]; ok {
			summary.ByStatus = append(summary.ByStatus, *sc)
		}
	}
	for _, tp := range byProduct {
		summary.TopProducts = append(summary.TopProducts, *tp)
	}
	sort.Slice(summary.TopProducts, func(i, j int) bool {
		return summary.TopProducts[i].Quantity > summary.TopProducts[j].Quantity
	})
	if len(summary.TopProducts) > 5 {
		summary.TopProducts = summary.TopProducts[:5]
	}
	return summary, nil
}

func paginate[T any](rows []T, page store.Page) []T {
	if page.Limit <= 0 {
		return rows
	}
	start := int(page.Skip())
	if start >= len(rows) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
