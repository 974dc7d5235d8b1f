package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/reconcile"
	"github.com/crestrock/storefront/internal/service"
)

// OrderService is the order store as the HTTP layer uses it.
type OrderService interface {
	reconcile.OrderStore
	List(ctx context.Context, req dto.ListOrdersRequest) (*dto.OrderListResponse, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
	ApplyPaymentResult(ctx context.Context, result *payment.Result) (*model.Order, error)
}

type OrderHandler struct {
	orders OrderService
	cart   CartPricer
}

func NewOrderHandler(orders OrderService, cart CartPricer) *OrderHandler {
	return &OrderHandler{orders: orders, cart: cart}
}

// Create stores an order submitted by a remote checkout. Item names and
// prices are re-read from the catalog; only product ids and quantities
// are taken from the request.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lines := make([]dto.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, dto.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	items, err := h.cart.Snapshot(c.Request.Context(), lines)
	if err != nil {
		writeCartError(c, err)
		return
	}

	order := &model.Order{
		Items:         items,
		Customer:      req.Customer.Model(),
		PaymentMethod: req.PaymentMethod,
	}
	if err := h.orders.CreateOrder(c.Request.Context(), order); err != nil {
		writeOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) AttachPaymentRequest(c *gin.Context) {
	var req dto.PaymentRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.orders.AttachPaymentRequest(c.Request.Context(), c.Param("id"), model.PaymentRequest{
		MerchantRequestID: req.MerchantRequestID,
		CheckoutRequestID: req.CheckoutRequestID,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) List(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.orders.List(c.Request.Context(), req)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func writeOrderError(c *gin.Context, err error) {
	var ve *reconcile.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": reconcile.UserMessage(err), "field": ve.Field})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrOrderFinalized), errors.Is(err, service.ErrPaymentNotAllowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
