// Package mongo implements store.Datastore on MongoDB. Multi-document work runs in a
// session transaction with snapshot reads and majority writes, which requires a
// replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

const (
	usersCollection         = "users"
	productsCollection      = "products"
	cartsCollection         = "carts"
	ordersCollection        = "orders"
	inventoryLogsCollection = "inventory_logs"
)

var productSortFields = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
	"stock":      "stock",
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ store.Datastore = (*Store)(nil)

func NewStore(client *mongo.Client, databaseName string, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		db:     client.Database(databaseName),
		logger: logger.Named("mongo"),
	}
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// WithTransaction runs work inside a session transaction. The driver retries the
// whole callback on transient errors; what is left after that is reported as
// store.ErrTxAborted.
func (s *Store) WithTransaction(ctx context.Context, work func(ctx context.Context, tx store.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	txnOptions := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, work(txCtx, s)
	}, txnOptions)
	if err != nil && isAborted(err) {
		s.logger.Warn("Transaction aborted", zap.Error(err))
		return fmt.Errorf("%w: %v", store.ErrTxAborted, err)
	}
	return err
}

func isAborted(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func findPage(page store.Page, sort bson.D) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(sort)
	if page.Limit > 0 {
		opts.SetSkip(page.Skip()).SetLimit(int64(page.Limit))
	}
	return opts
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if _, err := s.collection(usersCollection).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.collection(usersCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.collection(usersCollection).FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	query := bson.D{}
	if filter.Role != "" {
		query = append(query, bson.E{Key: "role", Value: filter.Role})
	}
	if filter.Search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: pattern}},
			bson.D{{Key: "email", Value: pattern}},
		}})
	}

	var users []models.User
	total, err := s.findAll(ctx, usersCollection, query, findPage(filter.Page, bson.D{{Key: "created_at", Value: -1}}), &users)
	return users, total, err
}

// Products

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = bson.NewObjectID()
	}
	if _, err := s.collection(productsCollection).InsertOne(ctx, product); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := s.collection(productsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&product); err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int64, error) {
	query := bson.D{}
	if filter.Category != "" {
		query = append(query, bson.E{Key: "category", Value: filter.Category})
	}
	if filter.Search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: pattern}},
			bson.D{{Key: "description", Value: pattern}},
		}})
	}

	field, ok := productSortFields[filter.SortBy]
	if !ok {
		field = "created_at"
	}
	direction := -1
	if filter.SortOrder == "asc" {
		direction = 1
	}
	sort := bson.D{{Key: field, Value: direction}, {Key: "_id", Value: direction}}

	var products []models.Product
	total, err := s.findAll(ctx, productsCollection, query, findPage(filter.Page, sort), &products)
	return products, total, err
}

func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: product.Name},
		{Key: "description", Value: product.Description},
		{Key: "category", Value: product.Category},
		{Key: "price", Value: product.Price},
		{Key: "image_url", Value: product.ImageURL},
		{Key: "updated_at", Value: product.UpdatedAt},
	}}}
	res, err := s.collection(productsCollection).UpdateOne(ctx, bson.D{{Key: "_id", Value: product.ID}}, update)
	if err != nil {
		return fmt.Errorf("update product %s: %w", product.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id bson.ObjectID) error {
	res, err := s.collection(productsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AdjustStock is a single conditional $inc: the stock guard and the write happen in
// one server-side step, so concurrent reservations of the last unit cannot both match.
func (s *Store) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Product, error) {
	filter := bson.D{{Key: "_id", Value: id}}
	if delta < 0 {
		filter = append(filter, bson.E{Key: "stock", Value: bson.D{{Key: "$gte", Value: -delta}}})
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: delta}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	err := s.collection(productsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetProduct(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrInsufficientStock
	}
	if err != nil {
		return nil, fmt.Errorf("adjust stock of %s: %w", id.Hex(), err)
	}
	return &product, nil
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	if entry.ID.IsZero() {
		entry.ID = bson.NewObjectID()
	}
	if _, err := s.collection(inventoryLogsCollection).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert inventory log: %w", err)
	}
	return nil
}

func (s *Store) ListInventoryLogs(ctx context.Context, productID bson.ObjectID, page store.Page) ([]models.InventoryLog, int64, error) {
	query := bson.D{{Key: "product_id", Value: productID}}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

	var logs []models.InventoryLog
	total, err := s.findAll(ctx, inventoryLogsCollection, query, findPage(page, sort), &logs)
	return logs, total, err
}

// Carts

func (s *Store) GetOrCreateCart(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	fresh := models.NewCart(userID)
	filter := bson.D{{Key: "user_id", Value: userID}}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "_id", Value: fresh.ID},
		{Key: "user_id", Value: userID},
		{Key: "items", Value: bson.A{}},
		{Key: "created_at", Value: fresh.CreatedAt},
		{Key: "updated_at", Value: fresh.UpdatedAt},
	}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var cart models.Cart
	err := s.collection(cartsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// lost the upsert race to a concurrent request; the cart exists now
		err = s.collection(cartsCollection).FindOne(ctx, filter).Decode(&cart)
	}
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "items", Value: items},
		{Key: "updated_at", Value: cart.UpdatedAt},
	}}}
	res, err := s.collection(cartsCollection).UpdateOne(ctx, bson.D{{Key: "_id", Value: cart.ID}}, update)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ClearCart(ctx context.Context, userID bson.ObjectID) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "items", Value: bson.A{}},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	if _, err := s.collection(cartsCollection).UpdateOne(ctx, bson.D{{Key: "user_id", Value: userID}}, update); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = bson.NewObjectID()
	}
	if _, err := s.collection(ordersCollection).InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.collection(ordersCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&order); err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	query := bson.D{}
	if filter.UserID != nil {
		query = append(query, bson.E{Key: "user_id", Value: *filter.UserID})
	}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: filter.Status})
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

	var orders []models.Order
	total, err := s.findAll(ctx, ordersCollection, query, findPage(filter.Page, sort), &orders)
	return orders, total, err
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order, expect models.OrderStatus) error {
	filter := bson.D{{Key: "_id", Value: order.ID}}
	if expect != "" {
		filter = append(filter, bson.E{Key: "status", Value: expect})
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: order.Status},
		{Key: "timeline", Value: order.Timeline},
		{Key: "updated_at", Value: order.UpdatedAt},
	}}}

	res, err := s.collection(ordersCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetOrder(ctx, order.ID); getErr != nil {
			return getErr
		}
		return store.ErrStatusConflict
	}
	return nil
}

func (s *Store) findAll(ctx context.Context, collectionName string, query bson.D, opts *options.FindOptionsBuilder, out any) (int64, error) {
	collection := s.collection(collectionName)

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collectionName, err)
	}

	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return 0, fmt.Errorf("find %s: %w", collectionName, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", collectionName, err)
	}
	return total, nil
}
