package email

import (
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestrock/storefront/internal/model"
)

func whatsAppOrder(method model.PaymentMethod) *model.Order {
	return &model.Order{
		ID: "5b1e7c2a-0d4f-4f43-9a57-1c2d3e4f5a6b",
		Items: []model.LineItem{
			{Name: "Air Max", Brand: "Nike", UnitPrice: decimal.NewFromInt(20000), Quantity: 2},
			{Name: "Socks 3+1 & Cap", Brand: "Puma", UnitPrice: decimal.NewFromInt(10000), Quantity: 1},
		},
		Total:         decimal.NewFromInt(50000),
		Customer:      model.CustomerInfo{Name: "Jane", Phone: "254712345678", DeliveryAddress: "Kilimani, Nairobi"},
		PaymentMethod: method,
	}
}

func TestWhatsAppOrderText(t *testing.T) {
	want := "Hi! I'd like to place an order:\n\n" +
		"• Air Max - Qty: 2 - KSh 40,000\n" +
		"• Socks 3+1 & Cap - Qty: 1 - KSh 10,000\n" +
		"\nTotal: KSh 50,000\n" +
		"Order: ORD-3E4F5A6B\n" +
		"\nPlease confirm availability and delivery details."
	assert.Equal(t, want, WhatsAppOrderText(whatsAppOrder(model.PaymentMethodWhatsApp)))
}

func TestWhatsAppOrderText_CashCarriesDeliveryDetails(t *testing.T) {
	text := WhatsAppOrderText(whatsAppOrder(model.PaymentMethodCash))
	assert.True(t, strings.HasPrefix(text, "Hi! I'd like to place a cash on delivery order:"))
	assert.Contains(t, text, "Delivery Address: Kilimani, Nairobi\nPhone: 254712345678\nName: Jane\n")
}

func TestWhatsAppLink_Encoding(t *testing.T) {
	text := WhatsAppOrderText(whatsAppOrder(model.PaymentMethodCash))
	link := WhatsAppLink("", text)

	require.True(t, strings.HasPrefix(link, "https://wa.me/"+DefaultWhatsAppNumber+"?text="))
	raw := strings.TrimPrefix(link, "https://wa.me/"+DefaultWhatsAppNumber+"?text=")
	assert.NotContains(t, raw, "+")
	assert.NotContains(t, raw, " ")
	assert.NotContains(t, raw, "&")
	assert.Contains(t, raw, "%20")
	assert.Contains(t, raw, "3%2B1")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, text, u.Query().Get("text"))
}

func TestWhatsAppHandoff(t *testing.T) {
	assert.Empty(t, WhatsAppHandoff(whatsAppOrder(model.PaymentMethodMpesa), ""))
	assert.True(t, strings.HasPrefix(WhatsAppHandoff(whatsAppOrder(model.PaymentMethodWhatsApp), "254700000001"), "https://wa.me/254700000001?text="))
	assert.NotEmpty(t, WhatsAppHandoff(whatsAppOrder(model.PaymentMethodCash), ""))
}
