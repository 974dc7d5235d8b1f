package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/reconcile"
)

type streamEvent struct {
	name string
	data any
}

// StreamHandler serves the order confirmation page as server-sent
// events: "status" on every change, "final" once, "warning" for a
// failed confirmation email and "timeout" when the order is still open
// after the polling budget.
type StreamHandler struct {
	orders        OrderService
	newController ControllerFactory
}

func NewStreamHandler(orders OrderService, newController ControllerFactory) *StreamHandler {
	return &StreamHandler{orders: orders, newController: newController}
}

func (h *StreamHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")

	if _, err := h.orders.GetOrder(ctx, orderID); err != nil {
		writeOrderError(c, err)
		return
	}

	ctrl := h.newController()
	defer ctrl.Close()

	events := make(chan streamEvent, 8)
	send := func(ev streamEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	poll := ctrl.PollUntilTerminal(ctx, orderID, reconcile.PollConfig{
		OnChange: func(o *model.Order) {
			send(streamEvent{"status", dto.NewOrderResponse(o)})
		},
		OnTerminal: func(o *model.Order) {
			send(streamEvent{"final", gin.H{"status": o.EffectiveStatus(), "label": o.EffectiveStatus().Label()}})
		},
		OnWarning: func(err error) {
			send(streamEvent{"warning", gin.H{"message": reconcile.UserMessage(err)}})
		},
	})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(io.Writer) bool {
		select {
		case ev := <-events:
			c.SSEvent(ev.name, ev.data)
			return true
		case <-poll.Done():
			// Callbacks have all returned once the poll is done.
		drain:
			for {
				select {
				case ev := <-events:
					c.SSEvent(ev.name, ev.data)
				default:
					break drain
				}
			}
			if _, err := poll.Wait(); errors.Is(err, reconcile.ErrPollExhausted) {
				c.SSEvent("timeout", gin.H{"message": reconcile.UserMessage(err)})
			}
			return false
		case <-ctx.Done():
			poll.Cancel()
			return false
		}
	})
}
