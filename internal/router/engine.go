package router

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/ai"
	"julianmorley.ca/con-plar/storefront/pkg/auth"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

// Dependencies is everything the HTTP layer needs.
type Dependencies struct {
	Datastore      store.Datastore
	Auth           *auth.Service
	Accounts       *shop.Accounts
	Catalog        *shop.Catalog
	Carts          *shop.Carts
	Orders         *shop.OrderLifecycle
	Reports        *shop.Reports
	Reporter       *ai.Reporter
	Logger         *zap.Logger
	AllowedOrigins []string
	Production     bool
}

type Handler struct {
	Dependencies
}

var registerTagName sync.Once

// NewEngine builds the gin engine with middleware and every route mounted under /api.
func NewEngine(deps Dependencies) *gin.Engine {
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	router := gin.New()
	router.Use(
		RequestID(),
		RequestLogger(deps.Logger),
		gin.Recovery(),
		cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", requestIDHeader},
			ExposeHeaders:    []string{"Content-Length", "X-Cache", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	h := &Handler{Dependencies: deps}
	authenticated := Authenticate(deps.Auth, deps.Datastore)
	adminOnly := RequireRole(models.RoleAdmin)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, globalNotFound())
	})

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", h.Register)
			authRoutes.POST("/login", h.Login)
			authRoutes.GET("/me", authenticated, h.Me)
		}

		products := api.Group("/products")
		{
			products.GET("", h.ListProducts)
			products.GET("/recent", h.RecentProducts)
			products.GET("/:id", h.GetProduct)
			products.POST("", authenticated, adminOnly, h.CreateProduct)
			products.PUT("/:id", authenticated, adminOnly, h.UpdateProduct)
			products.DELETE("/:id", authenticated, adminOnly, h.DeleteProduct)
			products.GET("/:id/inventory", authenticated, adminOnly, h.InventoryHistory)
		}

		cart := api.Group("/cart", authenticated)
		{
			cart.GET("", h.GetCart)
			cart.POST("/items", h.AddToCart)
			cart.PUT("/items/:productId", h.UpdateCartItem)
			cart.DELETE("/items/:productId", h.RemoveFromCart)
			cart.DELETE("", h.ClearCart)
		}

		orders := api.Group("/orders", authenticated)
		{
			orders.POST("", h.PlaceOrder)
			orders.GET("/my-orders", h.GetMyOrders)
			orders.GET("/:orderId", h.GetOrder)
			orders.PATCH("/:orderId/cancel", h.CancelOrder)
			orders.GET("", adminOnly, h.GetAllOrders)
			orders.PATCH("/:orderId/status", adminOnly, h.UpdateOrderStatus)
		}

		users := api.Group("/users", authenticated)
		{
			users.GET("", adminOnly, h.ListUsers)
			users.GET("/:userId", h.GetUser)
		}

		admin := api.Group("/admin", authenticated, adminOnly)
		{
			admin.GET("/reports/sales", h.SalesReport)
			admin.GET("/reports/inventory", h.InventoryReport)
		}
	}

	return router
}

// useJSONFieldNames makes binding errors name fields the way clients send them.
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
}
