package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/service"
)

// CartPricer prices client-side carts against the catalog.
type CartPricer interface {
	Snapshot(ctx context.Context, lines []dto.CartLine) ([]model.LineItem, error)
	Quote(ctx context.Context, req dto.QuoteRequest) (*dto.QuoteResponse, error)
}

type CartHandler struct {
	cart CartPricer
}

func NewCartHandler(cart CartPricer) *CartHandler {
	return &CartHandler{cart: cart}
}

func (h *CartHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.cart.Quote(c.Request.Context(), req)
	if err != nil {
		writeCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// cartError reports false when err is not a catalog error and
// nothing was written.
func cartError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProductUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		return false
	}
	return true
}

func writeCartError(c *gin.Context, err error) {
	if !cartError(c, err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
