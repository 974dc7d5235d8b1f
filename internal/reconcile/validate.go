package reconcile

import (
	"fmt"
	"strings"

	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/phone"
)

// NewOrder validates a checkout and returns the order to submit. Items are
// copied so later cart edits cannot reach the snapshot. ID and status are
// left for the store to assign.
func NewOrder(items []model.LineItem, customer model.CustomerInfo, method model.PaymentMethod) (*model.Order, error) {
	order := &model.Order{
		Items:         append([]model.LineItem(nil), items...),
		Customer:      customer,
		PaymentMethod: method,
	}
	if err := Validate(order); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate checks items, customer fields and payment method, normalizes
// the phone number in place and recomputes the total from the items.
func Validate(order *model.Order) error {
	if len(order.Items) == 0 {
		return invalid("items", ErrEmptyCart)
	}
	for i, item := range order.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return invalid(fmt.Sprintf("items[%d].productId", i), ErrRequired)
		}
		if item.Quantity < 1 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), ErrInvalidQuantity)
		}
		if item.UnitPrice.IsNegative() {
			return invalid(fmt.Sprintf("items[%d].unitPrice", i), ErrInvalidPrice)
		}
	}

	c := &order.Customer
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.DeliveryAddress = strings.TrimSpace(c.DeliveryAddress)
	switch {
	case c.Name == "":
		return invalid("name", ErrRequired)
	case strings.TrimSpace(c.Phone) == "":
		return invalid("phone", ErrRequired)
	case c.DeliveryAddress == "":
		return invalid("deliveryAddress", ErrRequired)
	}

	normalized, err := phone.Normalize(c.Phone)
	if err != nil {
		return invalid("phone", err)
	}
	c.Phone = normalized

	if order.PaymentMethod == "" {
		return invalid("paymentMethod", ErrRequired)
	}
	if !order.PaymentMethod.Valid() {
		return invalid("paymentMethod", ErrInvalidPaymentMethod)
	}

	order.Total = model.SumItems(order.Items)
	return nil
}
