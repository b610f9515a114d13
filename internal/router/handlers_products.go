package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
)

func (h *Handler) ListProducts(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.Catalog.ListProducts(c.Request.Context(), shop.ProductQuery{
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sortBy", "created_at"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

func (h *Handler) RecentProducts(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	products, err := h.Catalog.RecentProducts(c.Request.Context(), n)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(products))
}

// GetProduct reports whether the answer came from the cache in X-Cache.
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	product, hit, err := h.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, global.SuccessResponse(product))
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	identity, _ := currentIdentity(c)
	product, err := h.Catalog.CreateProduct(c.Request.Context(), &req, identity.UserID.Hex())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Product created successfully", product))
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	identity, _ := currentIdentity(c)
	product, err := h.Catalog.UpdateProduct(c.Request.Context(), id, &req, identity.UserID.Hex())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Product updated successfully", product))
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Product deleted successfully", nil))
}

func (h *Handler) InventoryHistory(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.Catalog.InventoryHistory(c.Request.Context(), id, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}
