package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/phone"
)

type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]*model.Order
	creates   int
	attaches  int
	reads     int
	createErr error
	attachErr error
	// read, when set, answers the n-th GetOrder (1-based).
	read func(ctx context.Context, n int) (*model.Order, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*model.Order)}
}

func (s *fakeStore) CreateOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	order.ID = fmt.Sprintf("order-%04d", s.creates)
	order.Status = order.PaymentMethod.InitialStatus()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *fakeStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	read := s.read
	o, ok := s.orders[id]
	s.mu.Unlock()

	if read != nil {
		return read(ctx, n)
	}
	if !ok {
		return nil, errors.New("order not found")
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) AttachPaymentRequest(_ context.Context, id string, req model.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attaches++
	if s.attachErr != nil {
		return s.attachErr
	}
	s.orders[id].PaymentRequest = &req
	return nil
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []payment.STKPushRequest
	err   error
}

func (g *fakeGateway) Initiate(_ context.Context, req payment.STKPushRequest) (*payment.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.STKPushResponse{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_1",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []string
	err   error
	param []email.Params
}

func (m *fakeMailer) Send(_ context.Context, to string, params email.Params) (*email.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.param = append(m.param, params)
	if m.err != nil {
		return &email.Result{Success: false}, m.err
	}
	return &email.Result{Success: true}, nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestController(store *fakeStore, gw *fakeGateway, mailer *fakeMailer) *Controller {
	deps := Deps{Store: store, Gateway: gw, Log: discard}
	if mailer != nil {
		deps.Mailer = mailer
	}
	return New(deps, Options{
		PollInterval:    time.Millisecond,
		PollMaxDuration: time.Second,
		OrderLinkBase:   "https://shop.example.com",
	})
}

func twoItems() []model.LineItem {
	return []model.LineItem{
		{ProductID: "p-1", Name: "Air Max", Brand: "Nike", UnitPrice: decimal.NewFromInt(20000), Quantity: 2},
		{ProductID: "p-2", Name: "Cap", Brand: "Puma", UnitPrice: decimal.NewFromInt(10000), Quantity: 1},
	}
}

func customer() model.CustomerInfo {
	return model.CustomerInfo{
		Name: "Jane Wanjiru", Phone: "0712 345 678", Email: "jane@example.com", DeliveryAddress: "Moi Avenue, Nairobi",
	}
}

func TestController_CreateOrder(t *testing.T) {
	store := newFakeStore()
	c := newTestController(store, &fakeGateway{}, nil)

	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.NoError(t, err)

	assert.Equal(t, "order-0001", ref.ID)
	assert.Equal(t, model.OrderStatusPaymentPending, ref.Status)
	assert.True(t, decimal.NewFromInt(50000).Equal(ref.Total))
	assert.Equal(t, "254712345678", store.orders[ref.ID].Customer.Phone)

	status, ok := c.LastKnown(ref.ID)
	assert.True(t, ok)
	assert.Equal(t, model.OrderStatusPaymentPending, status)
}

func TestController_CreateOrder_CashStartsPending(t *testing.T) {
	c := newTestController(newFakeStore(), &fakeGateway{}, nil)
	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodCash)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, ref.Status)
}

func TestController_CreateOrder_EmptyCartWritesNothing(t *testing.T) {
	store := newFakeStore()
	c := newTestController(store, &fakeGateway{}, nil)

	_, err := c.CreateOrder(context.Background(), nil, customer(), model.PaymentMethodMpesa)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, store.creates)
	assert.Equal(t, "Your cart is empty.", UserMessage(err))
}

func TestController_CreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(items []model.LineItem, c *model.CustomerInfo, m *model.PaymentMethod)
		field   string
		wantErr error
	}{
		{"missing name", func(_ []model.LineItem, c *model.CustomerInfo, _ *model.PaymentMethod) { c.Name = "  " }, "name", ErrRequired},
		{"missing phone", func(_ []model.LineItem, c *model.CustomerInfo, _ *model.PaymentMethod) { c.Phone = "" }, "phone", ErrRequired},
		{"missing address", func(_ []model.LineItem, c *model.CustomerInfo, _ *model.PaymentMethod) { c.DeliveryAddress = "" }, "deliveryAddress", ErrRequired},
		{"bad phone", func(_ []model.LineItem, c *model.CustomerInfo, _ *model.PaymentMethod) { c.Phone = "12345" }, "phone", phone.ErrInvalidPhone},
		{"bad method", func(_ []model.LineItem, _ *model.CustomerInfo, m *model.PaymentMethod) { *m = "card" }, "paymentMethod", ErrInvalidPaymentMethod},
		{"zero quantity", func(items []model.LineItem, _ *model.CustomerInfo, _ *model.PaymentMethod) { items[0].Quantity = 0 }, "items[0].quantity", ErrInvalidQuantity},
		{"negative price", func(items []model.LineItem, _ *model.CustomerInfo, _ *model.PaymentMethod) {
			items[1].UnitPrice = decimal.NewFromInt(-1)
		}, "items[1].unitPrice", ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			c := newTestController(store, &fakeGateway{}, nil)
			items, cust, method := twoItems(), customer(), model.PaymentMethodMpesa
			tt.mutate(items, &cust, &method)

			_, err := c.CreateOrder(context.Background(), items, cust, method)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, store.creates)
			assert.NotEmpty(t, UserMessage(err))
		})
	}
}

func TestController_CreateOrder_StoreFailureNotRetried(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("connection reset")
	c := newTestController(store, &fakeGateway{}, nil)

	_, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.Error(t, err)
	assert.Equal(t, 1, store.creates)
}

func TestController_CreateOrder_SnapshotsItems(t *testing.T) {
	store := newFakeStore()
	c := newTestController(store, &fakeGateway{}, nil)
	items := twoItems()

	ref, err := c.CreateOrder(context.Background(), items, customer(), model.PaymentMethodCash)
	require.NoError(t, err)

	items[0].Name = "changed"
	assert.Equal(t, "Air Max", store.orders[ref.ID].Items[0].Name)
}

func TestController_InitiatePayment(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{}
	c := newTestController(store, gw, nil)

	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.NoError(t, err)

	res, err := c.InitiatePayment(context.Background(), *ref, ref.Total, "+254712345678")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)

	require.Len(t, gw.calls, 1)
	assert.Equal(t, "254712345678", gw.calls[0].PhoneNumber)
	assert.Equal(t, int64(50000), gw.calls[0].Amount)
	assert.Equal(t, ref.ID, gw.calls[0].OrderID)
	assert.Equal(t, model.OrderReference(ref.ID), gw.calls[0].AccountReference)

	require.NotNil(t, store.orders[ref.ID].PaymentRequest)
	assert.Equal(t, "mr-1", store.orders[ref.ID].PaymentRequest.MerchantRequestID)

	status, _ := c.LastKnown(ref.ID)
	assert.Equal(t, model.OrderStatusPaymentPending, status)
}

func TestController_InitiatePayment_ForeignOrder(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(newFakeStore(), gw, nil)

	_, err := c.InitiatePayment(context.Background(), OrderRef{ID: "someone-else"}, decimal.NewFromInt(100), "0712345678")
	assert.ErrorIs(t, err, ErrForeignOrder)
	assert.Empty(t, gw.calls)
}

func TestController_InitiatePayment_OtherSessionOrder(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{}
	first := newTestController(store, gw, nil)
	ref, err := first.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.NoError(t, err)

	second := newTestController(store, gw, nil)
	_, err = second.InitiatePayment(context.Background(), *ref, ref.Total, "0712345678")
	assert.ErrorIs(t, err, ErrForeignOrder)
	assert.Empty(t, gw.calls)
}

func TestController_InitiatePayment_GatewayFailureLeavesStatus(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{err: &payment.GatewayError{StatusCode: 400, Message: "insufficient funds"}}
	c := newTestController(store, gw, nil)

	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.NoError(t, err)
	before := store.orders[ref.ID].Status

	_, err = c.InitiatePayment(context.Background(), *ref, ref.Total, "0712345678")
	require.Error(t, err)

	var ge *payment.GatewayError
	assert.True(t, errors.As(err, &ge))
	assert.Equal(t, "insufficient funds", UserMessage(err))
	assert.Equal(t, before, store.orders[ref.ID].Status)
	assert.Nil(t, store.orders[ref.ID].PaymentRequest)
	assert.Equal(t, 0, store.attaches)
	assert.Len(t, gw.calls, 1)
}

func TestController_InitiatePayment_NotMpesa(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(newFakeStore(), gw, nil)
	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodCash)
	require.NoError(t, err)

	_, err = c.InitiatePayment(context.Background(), *ref, ref.Total, "0712345678")
	assert.ErrorIs(t, err, ErrNotMobileMoney)
	assert.Empty(t, gw.calls)
}

func TestController_InitiatePayment_AttachFailure(t *testing.T) {
	store := newFakeStore()
	store.attachErr = errors.New("write failed")
	c := newTestController(store, &fakeGateway{}, nil)
	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.NoError(t, err)

	_, err = c.InitiatePayment(context.Background(), *ref, ref.Total, "0712345678")
	assert.ErrorContains(t, err, "record payment request")
}

func TestController_InitiatePayment_InvalidInput(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(newFakeStore(), gw, nil)
	ref, err := c.CreateOrder(context.Background(), twoItems(), customer(), model.PaymentMethodMpesa)
	require.NoError(t, err)

	_, err = c.InitiatePayment(context.Background(), *ref, decimal.Zero, "0712345678")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.InitiatePayment(context.Background(), *ref, ref.Total, "07")
	assert.ErrorIs(t, err, phone.ErrInvalidPhone)
	assert.Empty(t, gw.calls)
}

func TestController_OnTerminalPaid_AtMostOnce(t *testing.T) {
	mailer := &fakeMailer{}
	c := newTestController(newFakeStore(), &fakeGateway{}, mailer)
	order := paidOrder("order-1")

	for i := 0; i < 3; i++ {
		require.NoError(t, c.OnTerminalPaid(context.Background(), order))
	}
	assert.Equal(t, 1, mailer.count())
	assert.Equal(t, "jane@example.com", mailer.sent[0])
	assert.Equal(t, "NLJ7RT61SV", mailer.param[0]["receipt_number"])
	assert.Equal(t, "https://shop.example.com/order-confirmation/order-1", mailer.param[0]["order_link"])
}

func TestController_OnTerminalPaid_FailureNotRetried(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	c := newTestController(newFakeStore(), &fakeGateway{}, mailer)
	order := paidOrder("order-1")

	err := c.OnTerminalPaid(context.Background(), order)
	assert.ErrorIs(t, err, ErrEmailNotSent)
	assert.Equal(t, "Your order is confirmed, but we could not send the confirmation email.", UserMessage(err))

	require.NoError(t, c.OnTerminalPaid(context.Background(), order))
	assert.Equal(t, 1, mailer.count())
}

func TestController_OnTerminalPaid_NoEmail(t *testing.T) {
	mailer := &fakeMailer{}
	c := newTestController(newFakeStore(), &fakeGateway{}, mailer)
	order := paidOrder("order-1")
	order.Customer.Email = ""

	require.NoError(t, c.OnTerminalPaid(context.Background(), order))
	assert.Zero(t, mailer.count())
}

func TestController_OnTerminalPaid_NotPaid(t *testing.T) {
	mailer := &fakeMailer{}
	c := newTestController(newFakeStore(), &fakeGateway{}, mailer)
	order := paidOrder("order-1")
	order.Status = model.OrderStatusPaymentFailed
	order.PaymentData = nil

	assert.ErrorIs(t, c.OnTerminalPaid(context.Background(), order), ErrOrderNotPaid)
	assert.Zero(t, mailer.count())
}

func TestController_OnTerminalPaid_SharedDeduper(t *testing.T) {
	mailer := &fakeMailer{}
	dedupe := NewMemoryDeduper()
	opts := Options{PollInterval: time.Millisecond, PollMaxDuration: time.Second}
	a := New(Deps{Store: newFakeStore(), Mailer: mailer, Deduper: dedupe, Log: discard}, opts)
	b := New(Deps{Store: newFakeStore(), Mailer: mailer, Deduper: dedupe, Log: discard}, opts)

	require.NoError(t, a.OnTerminalPaid(context.Background(), paidOrder("order-9")))
	require.NoError(t, b.OnTerminalPaid(context.Background(), paidOrder("order-9")))
	assert.Equal(t, 1, mailer.count())
}

func paidOrder(id string) *model.Order {
	return &model.Order{
		ID:            id,
		Status:        model.OrderStatusPaid,
		Total:         decimal.NewFromInt(50000),
		Items:         twoItems(),
		Customer:      model.CustomerInfo{Name: "Jane", Phone: "254712345678", Email: "jane@example.com"},
		PaymentMethod: model.PaymentMethodMpesa,
		PaymentData: &model.PaymentData{
			ReceiptNumber: "NLJ7RT61SV",
			Amount:        decimal.NewFromInt(50000),
			PayerPhone:    "254712345678",
			CompletedAt:   time.Now(),
		},
	}
}
