package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
)

func (h *Handler) PlaceOrder(c *gin.Context) {
	identity, _ := currentIdentity(c)
	order, err := h.Orders.PlaceOrder(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Order placed successfully", order))
}

func (h *Handler) GetMyOrders(c *gin.Context) {
	identity, _ := currentIdentity(c)
	page, limit := pageParams(c)
	result, err := h.Orders.GetUserOrders(c.Request.Context(), identity.UserID, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

// GetOrder lets administrators read any order; customers only see their own.
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := parseObjectID(c, "orderId")
	if !ok {
		return
	}
	identity, _ := currentIdentity(c)

	var (
		order *models.Order
		err   error
	)
	if identity.Role == models.RoleAdmin {
		order, err = h.Orders.FindOrder(c.Request.Context(), orderID)
	} else {
		order, err = h.Orders.GetOrder(c.Request.Context(), identity.UserID, orderID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := parseObjectID(c, "orderId")
	if !ok {
		return
	}
	identity, _ := currentIdentity(c)
	order, err := h.Orders.CancelOrder(c.Request.Context(), identity.UserID, orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Order cancelled successfully", order))
}

func (h *Handler) GetAllOrders(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.Orders.GetAllOrders(c.Request.Context(), shop.OrderQuery{
		Status: c.Query("status"),
		UserID: c.Query("userId"),
	}, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := parseObjectID(c, "orderId")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	identity, _ := currentIdentity(c)
	order, err := h.Orders.SetStatus(c.Request.Context(), orderID, req.Status, identity.UserID.Hex())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Order status updated successfully", order))
}
