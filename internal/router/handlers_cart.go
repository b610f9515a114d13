package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/models"
)

func (h *Handler) GetCart(c *gin.Context) {
	identity, _ := currentIdentity(c)
	cart, err := h.Carts.GetCart(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}
	productID, err := bson.ObjectIDFromHex(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid ID format", []global.ValidationError{
			{Field: "product_id", Message: "must be a 24 character hex id", Code: "invalid_format"},
		}))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	identity, _ := currentIdentity(c)
	cart, err := h.Carts.AddItem(c.Request.Context(), identity.UserID, productID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Item added to cart", cart))
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	productID, ok := parseObjectID(c, "productId")
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	identity, _ := currentIdentity(c)
	cart, err := h.Carts.UpdateItem(c.Request.Context(), identity.UserID, productID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Cart item updated", cart))
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	productID, ok := parseObjectID(c, "productId")
	if !ok {
		return
	}
	identity, _ := currentIdentity(c)
	cart, err := h.Carts.RemoveItem(c.Request.Context(), identity.UserID, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Item removed from cart", cart))
}

func (h *Handler) ClearCart(c *gin.Context) {
	identity, _ := currentIdentity(c)
	if err := h.Carts.Clear(c.Request.Context(), identity.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Cart cleared", nil))
}
