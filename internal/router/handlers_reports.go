package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
)

const lowStockScan = 100

// SalesReport accepts from and to as RFC 3339 timestamps or YYYY-MM-DD dates.
func (h *Handler) SalesReport(c *gin.Context) {
	from, ok := parseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to")
	if !ok {
		return
	}

	summary, err := h.Reports.SalesSummary(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(h.Reporter.SalesReport(c.Request.Context(), summary)))
}

// InventoryReport lists products at or below ?threshold units (default 10).
func (h *Handler) InventoryReport(c *gin.Context) {
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "10"))
	if err != nil || threshold < 0 {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid threshold", []global.ValidationError{
			{Field: "threshold", Message: "must be a non-negative integer", Code: "invalid_format"},
		}))
		return
	}

	result, err := h.Catalog.ListProducts(c.Request.Context(), shop.ProductQuery{SortBy: "stock", SortOrder: "asc"}, 1, lowStockScan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	low := make([]models.Product, 0, len(result.Items))
	for _, p := range result.Items {
		if p.Stock > threshold {
			break
		}
		low = append(low, p)
	}
	c.JSON(http.StatusOK, global.SuccessResponse(h.Reporter.InventoryReport(c.Request.Context(), low, threshold)))
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid date", []global.ValidationError{
		{Field: key, Message: "use RFC 3339 or YYYY-MM-DD", Code: "invalid_format"},
	}))
	return time.Time{}, false
}
