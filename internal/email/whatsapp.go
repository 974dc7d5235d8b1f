package email

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/crestrock/storefront/internal/model"
)

// DefaultWhatsAppNumber is the shop's order line.
const DefaultWhatsAppNumber = "254742312545"

// WhatsAppOrderText is the chat message a shopper sends to place a
// WhatsApp or cash-on-delivery order. Cash orders carry the delivery
// details so the shop can dispatch without asking.
func WhatsAppOrderText(order *model.Order) string {
	var b strings.Builder
	if order.PaymentMethod == model.PaymentMethodCash {
		b.WriteString("Hi! I'd like to place a cash on delivery order:\n\n")
	} else {
		b.WriteString("Hi! I'd like to place an order:\n\n")
	}
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s - Qty: %d - KSh %s\n", item.Name, item.Quantity, FormatAmount(item.Subtotal()))
	}
	fmt.Fprintf(&b, "\nTotal: KSh %s\n", FormatAmount(order.Total))
	if order.ID != "" {
		fmt.Fprintf(&b, "Order: %s\n", order.Reference())
	}
	if order.PaymentMethod == model.PaymentMethodCash {
		fmt.Fprintf(&b, "\nDelivery Address: %s\nPhone: %s\nName: %s\n",
			order.Customer.DeliveryAddress, order.Customer.Phone, order.Customer.Name)
	}
	b.WriteString("\nPlease confirm availability and delivery details.")
	return b.String()
}

// WhatsAppLink opens a chat with number prefilled with text. Spaces are
// encoded as %20 because wa.me does not decode "+".
func WhatsAppLink(number, text string) string {
	if number == "" {
		number = DefaultWhatsAppNumber
	}
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// WhatsAppHandoff returns the chat link for orders settled over WhatsApp,
// and "" for M-Pesa orders.
func WhatsAppHandoff(order *model.Order, number string) string {
	switch order.PaymentMethod {
	case model.PaymentMethodWhatsApp, model.PaymentMethodCash:
		return WhatsAppLink(number, WhatsAppOrderText(order))
	}
	return ""
}
