package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/reconcile"
	"github.com/crestrock/storefront/internal/repository"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderFinalized = errors.New("order is already settled")
	ErrInvalidStatus  = errors.New("invalid order status")
	// ErrPaymentNotAllowed refuses a payment request for an order that is
	// not waiting for an M-Pesa payment.
	ErrPaymentNotAllowed = errors.New("order is not awaiting M-Pesa payment")
	// ErrUnderpaid reports a successful callback whose amount does not
	// cover the order. The order is left open for review.
	ErrUnderpaid = errors.New("paid amount does not cover the order total")
)

// OrderService is the authoritative order store. It satisfies
// reconcile.OrderStore for in-process controllers.
type OrderService struct {
	orderRepo repository.OrderRepository
	events    EventPublisher
	log       *slog.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, events EventPublisher, log *slog.Logger) *OrderService {
	events, log = orDefault(events, log)
	return &OrderService{orderRepo: orderRepo, events: events, log: log}
}

var _ reconcile.OrderStore = (*OrderService)(nil)

// CreateOrder re-validates the order, assigns its initial status and
// persists it. Total is always recomputed from the items.
func (s *OrderService) CreateOrder(ctx context.Context, order *model.Order) error {
	if err := reconcile.Validate(order); err != nil {
		return err
	}
	order.Status = order.PaymentMethod.InitialStatus()
	order.PaymentRequest = nil
	order.PaymentData = nil
	order.FailReason = ""

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	event := model.NewEvent(model.EventOrderCreated,
		fmt.Sprintf("New order #%s from %s", order.ShortID(), order.Customer.Name), model.NotificationInfo)
	event.OrderID = order.ID
	event.Status = order.Status
	publish(ctx, s.events, s.log, event)
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// AttachPaymentRequest records the gateway identifiers. Only M-Pesa
// orders still awaiting payment accept one; settled orders refuse so a
// late initiation cannot reopen them. Re-sending the attached request is
// a no-op.
func (s *OrderService) AttachPaymentRequest(ctx context.Context, id string, req model.PaymentRequest) error {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	status := order.EffectiveStatus()
	if status.IsTerminal() {
		return ErrOrderFinalized
	}
	if order.PaymentMethod != model.PaymentMethodMpesa || status != model.OrderStatusPaymentPending {
		return ErrPaymentNotAllowed
	}
	if order.PaymentRequest != nil && order.PaymentRequest.CheckoutRequestID == req.CheckoutRequestID {
		return nil
	}
	if err := s.orderRepo.AttachPaymentRequest(ctx, id, req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("attach payment request: %w", err)
	}

	event := model.NewEvent(model.EventOrderPaymentInitiated,
		fmt.Sprintf("M-Pesa payment initiated for order #%s 📱", order.ShortID()), model.NotificationInfo)
	event.OrderID = id
	event.Status = model.OrderStatusPaymentPending
	publish(ctx, s.events, s.log, event)
	return nil
}

func (s *OrderService) List(ctx context.Context, req dto.ListOrdersRequest) (*dto.OrderListResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	orders, total, err := s.orderRepo.List(ctx, repository.OrderFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: (req.Page - 1) * req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, dto.NewOrderResponse(&orders[i]))
	}
	return &dto.OrderListResponse{Orders: items, Total: total}, nil
}

// UpdateStatus is the back-office override. Any valid status may be set.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if err := s.orderRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status
	s.publishStatus(ctx, order)
	return order, nil
}

// ApplyPaymentResult settles the order a gateway callback refers to.
// Callbacks for an order that already settled are acknowledged without
// changes, so duplicates are harmless.
func (s *OrderService) ApplyPaymentResult(ctx context.Context, result *payment.Result) (*model.Order, error) {
	order, err := s.orderRepo.FindByCheckoutRequestID(ctx, result.CheckoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("find order by checkout request: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.EffectiveStatus().IsTerminal() {
		s.log.Info("payment callback for settled order ignored",
			"order_id", order.ID, "status", order.Status, "checkout_request_id", result.CheckoutRequestID)
		return order, nil
	}

	if result.Success {
		due := decimal.NewFromInt(payment.WholeAmount(order.Total))
		if result.Amount.LessThan(due) {
			s.log.Warn("payment callback amount below order total",
				"order_id", order.ID, "checkout_request_id", result.CheckoutRequestID,
				"amount", result.Amount.String(), "due", due.String(), "receipt", result.Receipt)
			event := model.NewEvent(model.EventOrderPaymentMismatch,
				fmt.Sprintf("⚠️ Payment of KSh %s for order #%s does not cover KSh %s", email.FormatAmount(result.Amount), order.ShortID(), email.FormatAmount(due)),
				model.NotificationWarning)
			event.OrderID = order.ID
			event.Status = order.Status
			publish(ctx, s.events, s.log, event)
			return order, ErrUnderpaid
		}
	}

	var (
		status model.OrderStatus
		data   *model.PaymentData
		reason string
	)
	if result.Success {
		status = model.OrderStatusPaid
		data = &model.PaymentData{
			ReceiptNumber: result.Receipt,
			Amount:        result.Amount,
			PayerPhone:    result.Phone,
			CompletedAt:   result.CompletedAt,
		}
	} else {
		status = model.OrderStatusPaymentFailed
		reason = result.ResultDesc
	}

	if err := s.orderRepo.RecordPaymentResult(ctx, order.ID, status, data, reason); err != nil {
		return nil, fmt.Errorf("record payment result: %w", err)
	}
	order.Status = status
	order.PaymentData = data
	order.FailReason = reason

	s.publishStatus(ctx, order)
	return order, nil
}

func (s *OrderService) publishStatus(ctx context.Context, order *model.Order) {
	event := model.NewEvent(model.EventOrderStatusChanged,
		order.Status.NotificationMessage(order.ShortID()), order.Status.Severity())
	event.OrderID = order.ID
	event.Status = order.Status
	publish(ctx, s.events, s.log, event)
}
