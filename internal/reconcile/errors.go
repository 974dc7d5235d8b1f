package reconcile

import (
	"errors"
	"fmt"

	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/phone"
	"github.com/crestrock/storefront/internal/remote"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrRequired             = errors.New("is required")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidPrice         = errors.New("price must not be negative")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")

	ErrForeignOrder     = errors.New("order was not created in this session")
	ErrNotMobileMoney   = errors.New("order is not paid by mobile money")
	ErrPollExhausted    = errors.New("order did not reach a final status in time")
	ErrPollCancelled    = errors.New("polling cancelled")
	ErrEmailNotSent     = errors.New("confirmation email not sent")
	ErrOrderNotPaid     = errors.New("order is not paid")
	ErrControllerClosed = errors.New("controller closed")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

var fieldLabels = map[string]string{
	"name":            "your name",
	"phone":           "your phone number",
	"deliveryAddress": "a delivery address",
	"paymentMethod":   "a payment method",
}

// UserMessage turns any error from this package into a short message that
// is safe to show to a shopper. Raw remote payloads never pass through;
// the gateway's own message does.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	var ge *payment.GatewayError
	var ne *remote.NetworkError
	var re *remote.RemoteError

	switch {
	case errors.As(err, &ve):
		return ve.userMessage()
	case errors.As(err, &ge):
		return ge.Error()
	case errors.Is(err, ErrForeignOrder):
		return "This order cannot be paid from here. Please place the order again."
	case errors.Is(err, ErrNotMobileMoney):
		return "This order does not use M-Pesa."
	case errors.Is(err, ErrPollExhausted):
		return "We are still waiting for payment confirmation. Check again in a moment."
	case errors.Is(err, ErrEmailNotSent):
		return "Your order is confirmed, but we could not send the confirmation email."
	case errors.As(err, &ne):
		return "Could not reach the store. Check your connection and try again."
	case errors.As(err, &re):
		return "The store could not process your request. Please try again."
	}
	return "Something went wrong. Please try again."
}

func (e *ValidationError) userMessage() string {
	switch {
	case errors.Is(e.Err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(e.Err, phone.ErrInvalidPhone):
		return "Please enter a valid phone number, e.g. 0712345678."
	case errors.Is(e.Err, ErrRequired):
		if label, ok := fieldLabels[e.Field]; ok {
			return "Please enter " + label + "."
		}
		return "Please fill in all required fields."
	case errors.Is(e.Err, ErrInvalidPaymentMethod):
		return "Please choose M-Pesa, WhatsApp or cash on delivery."
	case errors.Is(e.Err, ErrInvalidQuantity), errors.Is(e.Err, ErrInvalidPrice):
		return "Your cart contains an invalid item. Please review it."
	case errors.Is(e.Err, ErrInvalidAmount):
		return "The payment amount is invalid."
	}
	return "Please check your details and try again."
}
