package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Datastore.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, global.ErrorResponse("Database connection failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"status": "OK", "database": "Connected"}))
}

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.Accounts.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("User registered successfully", result))
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.Accounts.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Login successful", result))
}

func (h *Handler) Me(c *gin.Context) {
	identity, _ := currentIdentity(c)
	user, err := h.Accounts.GetUser(c.Request.Context(), identity.UserID, identity.Role, identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(user))
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.Accounts.ListUsers(c.Request.Context(), shop.UserQuery{
		Role:   c.Query("role"),
		Search: c.Query("search"),
	}, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

func (h *Handler) GetUser(c *gin.Context) {
	userID, ok := parseObjectID(c, "userId")
	if !ok {
		return
	}
	identity, _ := currentIdentity(c)
	user, err := h.Accounts.GetUser(c.Request.Context(), identity.UserID, identity.Role, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(user))
}
