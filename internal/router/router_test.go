package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"julianmorley.ca/con-plar/storefront/pkg/ai"
	"julianmorley.ca/con-plar/storefront/pkg/auth"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
	"julianmorley.ca/con-plar/storefront/pkg/store/memory"
)

type testServer struct {
	engine *gin.Engine
	db     *memory.Store
	auth   *auth.Service
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"errors"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memory.New()
	logger := zap.NewNop()
	authService := auth.NewService("test-secret", time.Hour, auth.WithCost(bcrypt.MinCost))

	engine := NewEngine(Dependencies{
		Datastore:      db,
		Auth:           authService,
		Accounts:       shop.NewAccounts(db, authService, logger),
		Catalog:        shop.NewCatalog(db, logger),
		Carts:          shop.NewCarts(db, logger),
		Orders:         shop.NewOrderLifecycle(db, logger),
		Reports:        shop.NewReports(db, logger),
		Reporter:       ai.NewReporter(ai.Settings{}, logger),
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &testServer{engine: engine, db: db, auth: authService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) register(t *testing.T, email string) (string, bson.ObjectID) {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret123",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result models.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	return result.Token, result.User.ID
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	hashed, err := s.auth.HashPassword("admin123")
	require.NoError(t, err)
	user := &models.User{ID: bson.NewObjectID(), Email: "admin@shop.test", Password: hashed, Name: "Admin", Role: models.RoleAdmin}
	user.SetTimestamps()
	require.NoError(t, s.db.CreateUser(context.Background(), user))

	token, err := s.auth.IssueToken(user.ID, user.Role)
	require.NoError(t, err)
	return token
}

func (s *testServer) product(t *testing.T, adminToken string, price int64, stock int) models.Product {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/products", adminToken, map[string]any{
		"name":     "Widget",
		"category": "Tools",
		"price":    price,
		"stock":    stock,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func (s *testServer) stock(t *testing.T, id bson.ObjectID) int {
	t.Helper()
	p, err := s.db.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Jane@Example.com")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "jane@example.com", "password": "secret123", "name": "Jane",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		require.Len(t, env.Errors, 1)
		assert.Equal(t, "conflict", env.Errors[0].Code)
	})

	t.Run("validation errors name json fields", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "not-an-email", "password": "secret123", "name": "Jane",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotEmpty(t, env.Errors)
		assert.Equal(t, "email", env.Errors[0].Field)
	})

	t.Run("login", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "jane@example.com", "password": "secret123",
		})
		require.Equal(t, http.StatusOK, w.Code)
		var result models.AuthResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.NotEmpty(t, result.Token)

		w, _ = s.do(t, http.MethodGet, "/api/auth/me", result.Token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "jane@example.com", "password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthGuards(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "guard@example.com")

	w, _ := s.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/cart", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/products", token, map[string]any{
		"name": "Widget", "category": "Tools", "price": 100, "stock": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckoutAndCancel(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	product := s.product(t, adminToken, 1500, 5)
	token, _ := s.register(t, "buyer@example.com")

	w, _ := s.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": product.ID.Hex(),
		"quantity":   3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(t, http.MethodPost, "/api/orders", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, int64(4500), order.TotalAmount)
	assert.Equal(t, 2, s.stock(t, product.ID))

	w, _ = s.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/orders/"+order.ID.Hex()+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, s.stock(t, product.ID))

	w, env = s.do(t, http.MethodPatch, "/api/orders/"+order.ID.Hex()+"/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid_transition", env.Errors[0].Code)
	assert.Equal(t, 5, s.stock(t, product.ID))

	t.Run("another customer cannot see the order", func(t *testing.T) {
		other, _ := s.register(t, "other@example.com")
		w, _ := s.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex(), other, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("admin can see any order", func(t *testing.T) {
		w, _ := s.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex(), adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	product := s.product(t, adminToken, 1000, 2)
	token, _ := s.register(t, "errors@example.com")

	w, env := s.do(t, http.MethodPost, "/api/orders", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "empty_cart", env.Errors[0].Code)

	w, env = s.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": product.ID.Hex(),
		"quantity":   3,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "insufficient_stock", env.Errors[0].Code)
	assert.Equal(t, product.ID.Hex(), env.Errors[0].Field)

	w, _ = s.do(t, http.MethodGet, "/api/orders/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/products/"+bson.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminStatusUpdates(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	product := s.product(t, adminToken, 800, 4)
	token, _ := s.register(t, "status@example.com")

	w, _ := s.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"product_id": product.ID.Hex(),
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, env := s.do(t, http.MethodPost, "/api/orders", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))

	path := "/api/orders/" + order.ID.Hex() + "/status"

	w, env = s.do(t, http.MethodPatch, path, adminToken, map[string]string{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid_status", env.Errors[0].Code)

	w, env = s.do(t, http.MethodPatch, path, adminToken, map[string]string{"status": "PROCESSING"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, models.OrderProcessing, order.Status)

	w, env = s.do(t, http.MethodPatch, "/api/orders/"+order.ID.Hex()+"/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_transition", env.Errors[0].Code)
	assert.Equal(t, 2, s.stock(t, product.ID))

	w, env = s.do(t, http.MethodGet, "/api/orders?status=processing", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed models.PagedResult[models.Order]
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed.Items, 1)
}

func TestProductCacheHeaderWithoutCache(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	product := s.product(t, adminToken, 500, 1)

	w, _ := s.do(t, http.MethodGet, "/api/products/"+product.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}

func TestInventoryHistoryAndReports(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	product := s.product(t, adminToken, 500, 3)

	w, env := s.do(t, http.MethodGet, "/api/products/"+product.ID.Hex()+"/inventory", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history models.PagedResult[models.InventoryLog]
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Items, 1)

	w, _ = s.do(t, http.MethodGet, "/api/admin/reports/sales?from=2026-01-01&to=2026-02-01", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/admin/reports/sales?from=yesterday", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/admin/reports/inventory?threshold=5", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report ai.AIReportResponse
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "success", report.Status)
	assert.False(t, report.AIEnabled)
	low, ok := report.Data.RawData.([]any)
	require.True(t, ok)
	assert.Len(t, low, 1)
}
