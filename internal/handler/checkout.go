package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/reconcile"
)

// ControllerFactory opens a reconciliation session for one request.
type ControllerFactory func() *reconcile.Controller

type CheckoutHandler struct {
	cart           CartPricer
	orders         OrderService
	newController  ControllerFactory
	whatsAppNumber string
	log            *slog.Logger
}

func NewCheckoutHandler(cart CartPricer, orders OrderService, newController ControllerFactory, whatsAppNumber string, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{cart: cart, orders: orders, newController: newController, whatsAppNumber: whatsAppNumber, log: log}
}

// Checkout places the order and, for M-Pesa, sends the payment prompt.
// A failed prompt does not undo the order: the response carries the
// order with payment_error set so the shopper can retry or pay another
// way. WhatsApp and cash orders get a chat link instead.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	items, err := h.cart.Snapshot(ctx, req.Items)
	if err != nil {
		writeCartError(c, err)
		return
	}

	ctrl := h.newController()
	defer ctrl.Close()

	ref, err := ctrl.CreateOrder(ctx, items, req.Customer.Model(), req.PaymentMethod)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	resp := dto.CheckoutResponse{Reference: model.OrderReference(ref.ID)}
	if ref.PaymentMethod == model.PaymentMethodMpesa {
		payer := req.PaymentPhone
		if payer == "" {
			payer = req.Customer.Phone
		}
		started, err := ctrl.InitiatePayment(ctx, *ref, ref.Total, payer)
		if err != nil {
			h.log.Warn("checkout payment not started", "order_id", ref.ID, "error", err)
			resp.PaymentError = reconcile.UserMessage(err)
		} else {
			resp.PaymentStarted = true
			resp.CustomerMessage = started.CustomerMessage
		}
	}

	order, err := h.orders.GetOrder(ctx, ref.ID)
	if err != nil {
		h.log.Error("reload order after checkout", "order_id", ref.ID, "error", err)
		order = &model.Order{
			ID: ref.ID, Status: ref.Status, Total: ref.Total, PaymentMethod: ref.PaymentMethod,
			Items: items, Customer: req.Customer.Model(),
		}
	}
	resp.Order = dto.NewOrderResponse(order)
	resp.WhatsAppURL = email.WhatsAppHandoff(order, h.whatsAppNumber)

	c.JSON(http.StatusCreated, resp)
}
