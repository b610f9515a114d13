package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/global"
	"julianmorley.ca/con-plar/storefront/pkg/shop"
)

// statusFor maps the shop error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shop.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, shop.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, shop.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, shop.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, shop.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, shop.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shop.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, shop.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shop.ErrTransactionAborted):
		return http.StatusServiceUnavailable, "transaction_aborted"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request error",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}

	detail := global.ValidationError{Message: message, Code: code}
	var stockErr *shop.StockError
	if errors.As(err, &stockErr) {
		detail.Field = stockErr.ProductID.Hex()
	}
	c.JSON(status, global.ErrorResponse(message, []global.ValidationError{detail}))
}

// bindJSON binds the body and answers 400 with per-field errors on failure.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]global.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, global.ValidationError{
				Field:   fe.Field(),
				Message: fe.Error(),
				Code:    fe.Tag(),
			})
		}
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Validation failed", details))
		return false
	}

	c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid JSON format", []global.ValidationError{
		{Field: "body", Message: err.Error(), Code: "json_parse_error"},
	}))
	return false
}

func parseObjectID(c *gin.Context, param string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid ID format", []global.ValidationError{
			{Field: param, Message: "must be a 24 character hex id", Code: "invalid_format"},
		}))
		return bson.ObjectID{}, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}

func globalNotFound() global.APIResponse {
	return global.ErrorResponse("Route not found", nil)
}
