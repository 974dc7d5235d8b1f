package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/service"
)

const maxCallbackBody = 64 << 10

type PaymentHandler struct {
	orders OrderService
	log    *slog.Logger
}

func NewPaymentHandler(orders OrderService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, log: log}
}

// Callback receives the gateway's STK result. Anything the gateway
// should not resend is acknowledged with ResultCode 0, including
// callbacks for unknown checkout requests.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, err := payment.ParseCallback(body)
	if err != nil {
		h.log.Warn("malformed payment callback", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := h.log.With("checkout_request_id", result.CheckoutRequestID, "result_code", result.ResultCode)
	order, err := h.orders.ApplyPaymentResult(c.Request.Context(), result)
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		log.Warn("payment callback for unknown checkout request")
	case errors.Is(err, service.ErrUnderpaid):
		log.Warn("payment callback left order open", "order_id", order.ID, "error", err)
	case err != nil:
		log.Error("apply payment result", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	default:
		log.Info("payment callback applied", "order_id", order.ID, "status", order.Status)
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
