package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/auth"
	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	identityKey     = "identity"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

type userLookup interface {
	GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

// Authenticate requires a valid bearer token whose user still exists. The role is
// taken from the stored user so a demotion applies immediately.
func Authenticate(verifier *auth.Service, users userLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		identity, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), identity.UserID)
		if err != nil {
			abortUnauthorized(c, "User no longer exists")
			return
		}

		c.Set(identityKey, auth.Identity{UserID: user.ID, Role: user.Role})
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if !auth.Authorize(identity.Role, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, global.ErrorResponse("Insufficient permissions", []global.ValidationError{
				{Field: "role", Message: "this action requires one of the roles: " + joinRoles(roles), Code: "forbidden"},
			}))
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) (auth.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, global.ErrorResponse(message, []global.ValidationError{
		{Field: "authorization", Message: message, Code: "unauthorized"},
	}))
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
