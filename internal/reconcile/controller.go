// Package reconcile converges a shopper's view of an order with the
// authoritative order store: it creates the order, starts the mobile-money
// payment, polls until the order settles and sends the confirmation email
// once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/phone"
	"github.com/crestrock/storefront/internal/remote"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxDuration = 2 * time.Minute
)

// OrderStore is the authoritative order record. CreateOrder assigns ID,
// Status and timestamps on the order it is given.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	AttachPaymentRequest(ctx context.Context, id string, req model.PaymentRequest) error
}

type Gateway interface {
	Initiate(ctx context.Context, req payment.STKPushRequest) (*payment.STKPushResponse, error)
}

// Deduper grants a key exactly once.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
}

type Deps struct {
	Store   OrderStore
	Gateway Gateway
	Mailer  email.Sender
	Deduper Deduper
	Log     *slog.Logger
}

type Options struct {
	PollInterval    time.Duration
	PollMaxDuration time.Duration
	OrderLinkBase   string
}

// OrderRef identifies an order created through a controller.
type OrderRef struct {
	ID            string
	Status        model.OrderStatus
	Total         decimal.Decimal
	PaymentMethod model.PaymentMethod
}

type PaymentInitiation struct {
	OrderID           string
	MerchantRequestID string
	CheckoutRequestID string
	CustomerMessage   string
}

// Controller is one shopper session. Orders it creates are the only ones
// it will start payments for, and Close stops every poll it started.
type Controller struct {
	store   OrderStore
	gateway Gateway
	mailer  email.Sender
	dedupe  Deduper
	log     *slog.Logger
	opts    Options
	now     func() time.Time

	mu      sync.Mutex
	closed  bool
	created map[string]bool
	known   map[string]model.OrderStatus
	polls   map[string]*Poll
}

func New(deps Deps, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollMaxDuration <= 0 {
		opts.PollMaxDuration = DefaultPollMaxDuration
	}
	if deps.Deduper == nil {
		deps.Deduper = NewMemoryDeduper()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Controller{
		store:   deps.Store,
		gateway: deps.Gateway,
		mailer:  deps.Mailer,
		dedupe:  deps.Deduper,
		log:     deps.Log,
		opts:    opts,
		now:     time.Now,
		created: make(map[string]bool),
		known:   make(map[string]model.OrderStatus),
		polls:   make(map[string]*Poll),
	}
}

// CreateOrder validates the checkout and submits it once. Validation
// failures return *ValidationError without touching the store; store
// failures are returned for the shopper to retry.
func (c *Controller) CreateOrder(ctx context.Context, items []model.LineItem, customer model.CustomerInfo, method model.PaymentMethod) (*OrderRef, error) {
	order, err := NewOrder(items, customer, method)
	if err != nil {
		return nil, err
	}

	if err := c.store.CreateOrder(ctx, order); err != nil {
		c.log.Error("create order", "error", err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	ref := &OrderRef{
		ID:            order.ID,
		Status:        order.Status,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
	}
	c.mu.Lock()
	c.created[order.ID] = true
	c.known[order.ID] = order.Status
	c.mu.Unlock()

	c.log.Info("order created", "order_id", order.ID, "status", order.Status, "total", order.Total.String())
	return ref, nil
}

// InitiatePayment starts an STK push for an order created by this
// controller and records the gateway identifiers on it. A gateway refusal
// comes back as *payment.GatewayError and the order is left as it was.
func (c *Controller) InitiatePayment(ctx context.Context, ref OrderRef, amount decimal.Decimal, payerPhone string) (*PaymentInitiation, error) {
	c.mu.Lock()
	ok := c.created[ref.ID]
	c.mu.Unlock()
	if !ok {
		return nil, ErrForeignOrder
	}
	if ref.PaymentMethod != "" && ref.PaymentMethod != model.PaymentMethodMpesa {
		return nil, ErrNotMobileMoney
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", ErrInvalidAmount)
	}
	normalized, err := phone.Normalize(payerPhone)
	if err != nil {
		return nil, invalid("phone", err)
	}

	log := c.log.With("order_id", ref.ID)
	resp, err := c.gateway.Initiate(ctx, payment.STKPushRequest{
		PhoneNumber:      normalized,
		Amount:           payment.WholeAmount(amount),
		OrderID:          ref.ID,
		AccountReference: model.OrderReference(ref.ID),
		TransactionDesc:  "Payment for order " + model.OrderReference(ref.ID),
	})
	if err != nil {
		var ge *payment.GatewayError
		if errors.As(err, &ge) && len(ge.Body) > 0 {
			log.Warn("payment initiation failed", "error", err, "status", ge.StatusCode, "body", remote.Snippet(ge.Body, 512))
		} else {
			log.Warn("payment initiation failed", "error", err)
		}
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	req := model.PaymentRequest{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
	}
	if err := c.store.AttachPaymentRequest(ctx, ref.ID, req); err != nil {
		log.Error("record payment request", "checkout_request_id", req.CheckoutRequestID, "error", err)
		return nil, fmt.Errorf("record payment request: %w", err)
	}

	c.remember(ref.ID, model.OrderStatusPaymentPending)

	log.Info("payment initiated", "checkout_request_id", req.CheckoutRequestID)
	return &PaymentInitiation{
		OrderID:           ref.ID,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// LastKnown is the controller's local view of an order's status: what was
// last read, or what it expects after starting a payment.
func (c *Controller) LastKnown(orderID string) (model.OrderStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.known[orderID]
	return s, ok
}

func (c *Controller) remember(orderID string, status model.OrderStatus) {
	c.mu.Lock()
	c.known[orderID] = status
	c.mu.Unlock()
}

// OnTerminalPaid sends the confirmation email for a paid order at most
// once. The claim is taken before sending, so a failed send is not
// retried. Failures are logged and returned wrapped in ErrEmailNotSent.
func (c *Controller) OnTerminalPaid(ctx context.Context, order *model.Order) error {
	if order.EffectiveStatus() != model.OrderStatusPaid {
		return ErrOrderNotPaid
	}
	log := c.log.With("order_id", order.ID)
	if order.Customer.Email == "" {
		log.Info("no customer email, skipping confirmation")
		return nil
	}
	if c.mailer == nil {
		log.Debug("email dispatch disabled")
		return nil
	}

	claimed, err := c.dedupe.Claim(ctx, notifiedKey(order.ID))
	if err != nil {
		log.Warn("claim confirmation email", "error", err)
		return fmt.Errorf("%w: %w", ErrEmailNotSent, err)
	}
	if !claimed {
		log.Debug("confirmation email already handled")
		return nil
	}

	params := email.OrderConfirmation(order, c.opts.OrderLinkBase, c.now())
	if _, err := c.mailer.Send(ctx, order.Customer.Email, params); err != nil {
		log.Warn("send confirmation email", "error", err)
		return fmt.Errorf("%w: %w", ErrEmailNotSent, err)
	}
	log.Info("confirmation email sent")
	return nil
}

// Forget drops an order from the session. Running polls are not affected.
func (c *Controller) Forget(orderID string) {
	c.mu.Lock()
	delete(c.created, orderID)
	delete(c.known, orderID)
	c.mu.Unlock()
}

// Close cancels every running poll. Later polls finish immediately with
// ErrControllerClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	polls := make([]*Poll, 0, len(c.polls))
	for _, p := range c.polls {
		polls = append(polls, p)
	}
	c.polls = make(map[string]*Poll)
	c.mu.Unlock()

	for _, p := range polls {
		p.Cancel()
	}
}

func notifiedKey(orderID string) string { return "order_notified:" + orderID }
