package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order as held by the order store.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPaymentFailed  OrderStatus = "payment_failed"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentPending,
	OrderStatusPaid,
	OrderStatusPaymentFailed,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaymentPending, OrderStatusPaid,
		OrderStatusPaymentFailed, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether polling for further changes is pointless.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusPaymentFailed, OrderStatusDelivered, OrderStatusCancelled:
		return true
	case OrderStatusPending, OrderStatusPaymentPending:
		return false
	}
	return false
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusPaymentPending:
		return "Awaiting payment"
	case OrderStatusPaid:
		return "Paid"
	case OrderStatusPaymentFailed:
		return "Payment failed"
	case OrderStatusDelivered:
		return "Delivered"
	case OrderStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// NotificationMessage is the back-office text for an order entering s.
func (s OrderStatus) NotificationMessage(shortID string) string {
	switch s {
	case OrderStatusPaid:
		return fmt.Sprintf("Order #%s payment confirmed ✅", shortID)
	case OrderStatusPaymentFailed:
		return fmt.Sprintf("Order #%s payment failed ❌", shortID)
	case OrderStatusDelivered:
		return fmt.Sprintf("Order #%s delivered 📦", shortID)
	case OrderStatusCancelled:
		return fmt.Sprintf("Order #%s cancelled", shortID)
	case OrderStatusPending:
		return fmt.Sprintf("Order #%s is pending", shortID)
	case OrderStatusPaymentPending:
		return fmt.Sprintf("Order #%s awaiting payment", shortID)
	}
	return fmt.Sprintf("Order #%s status: %s", shortID, s)
}

func (s OrderStatus) Severity() NotificationType {
	switch s {
	case OrderStatusPaid, OrderStatusDelivered:
		return NotificationSuccess
	case OrderStatusPaymentFailed:
		return NotificationError
	case OrderStatusPending, OrderStatusPaymentPending, OrderStatusCancelled:
		return NotificationInfo
	}
	return NotificationInfo
}

type PaymentMethod string

const (
	PaymentMethodMpesa    PaymentMethod = "mpesa"
	PaymentMethodWhatsApp PaymentMethod = "whatsapp"
	PaymentMethodCash     PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMpesa, PaymentMethodWhatsApp, PaymentMethodCash:
		return true
	}
	return false
}

// InitialStatus is the status the store assigns to a new order paid with m.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == PaymentMethodMpesa {
		return OrderStatusPaymentPending
	}
	return OrderStatusPending
}

type CustomerInfo struct {
	Name            string
	Phone           string
	Email           string
	DeliveryAddress string
}

// LineItem is a snapshot of a catalog product taken when the order is placed.
type LineItem struct {
	ProductID string
	Name      string
	Brand     string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentRequest holds the gateway identifiers used to correlate the
// asynchronous payment callback with its order.
type PaymentRequest struct {
	MerchantRequestID string
	CheckoutRequestID string
}

type PaymentData struct {
	ReceiptNumber string
	Amount        decimal.Decimal
	PayerPhone    string
	CompletedAt   time.Time
}

type Order struct {
	ID             string
	Status         OrderStatus
	Total          decimal.Decimal
	Items          []LineItem
	Customer       CustomerInfo
	PaymentMethod  PaymentMethod
	PaymentRequest *PaymentRequest
	PaymentData    *PaymentData
	FailReason     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasReceipt reports whether the gateway confirmed payment for the order.
func (o *Order) HasReceipt() bool {
	return o.PaymentData != nil && o.PaymentData.ReceiptNumber != ""
}

// EffectiveStatus merges the status field with the receipt. The two are
// written separately, so a receipt may be visible while the status still
// reads pending; the receipt wins in that window.
func (o *Order) EffectiveStatus() OrderStatus {
	if o.HasReceipt() && (o.Status == OrderStatusPending || o.Status == OrderStatusPaymentPending) {
		return OrderStatusPaid
	}
	return o.Status
}

func (o *Order) ShortID() string { return ShortID(o.ID) }

func (o *Order) Reference() string { return OrderReference(o.ID) }

// ShortID is the last six characters of an order id.
func ShortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

// OrderReference is the customer-facing reference, e.g. ORD-1A2B3C4D.
func OrderReference(id string) string {
	tail := id
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	return "ORD-" + strings.ToUpper(tail)
}

// SumItems totals the line items.
func SumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
