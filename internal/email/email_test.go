package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/remote"
)

func TestNewEmailJS_RequiresKeys(t *testing.T) {
	_, err := NewEmailJS(EmailJSConfig{ServiceID: "svc"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmailJS_Send(t *testing.T) {
	var got emailJSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	sender, err := NewEmailJS(EmailJSConfig{
		Endpoint: srv.URL, ServiceID: "svc", TemplateID: "tpl", PublicKey: "pub", PrivateKey: "priv",
	})
	require.NoError(t, err)

	res, err := sender.Send(context.Background(), "jane@example.com", Params{"customer_name": "Jane"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, "svc", got.ServiceID)
	assert.Equal(t, "tpl", got.TemplateID)
	assert.Equal(t, "pub", got.UserID)
	assert.Equal(t, "priv", got.AccessToken)
	assert.Equal(t, "jane@example.com", got.TemplateParams["to_email"])
	assert.Equal(t, "Jane", got.TemplateParams["customer_name"])
}

func TestEmailJS_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("API calls are disabled for non-browser applications"))
	}))
	defer srv.Close()

	sender, err := NewEmailJS(EmailJSConfig{Endpoint: srv.URL, ServiceID: "s", TemplateID: "t", PublicKey: "p"})
	require.NoError(t, err)

	res, err := sender.Send(context.Background(), "a@b.c", nil)
	var re *remote.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusForbidden, re.StatusCode)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "API calls are disabled")
}

func TestOrderConfirmation(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	order := &model.Order{
		ID:     "5b1e7c2a-0d4f-4f43-9a57-1c2d3e4f5a6b",
		Status: model.OrderStatusPaid,
		Total:  decimal.NewFromInt(50000),
		Items: []model.LineItem{
			{Name: "Air <Max>", Brand: "Nike", UnitPrice: decimal.NewFromInt(20000), Quantity: 2},
			{Name: "Socks", Brand: "Puma", UnitPrice: decimal.NewFromInt(10000), Quantity: 1},
		},
		Customer: model.CustomerInfo{Name: "Jane", Phone: "254712345678", Email: "jane@example.com"},
		PaymentData: &model.PaymentData{
			ReceiptNumber: "NLJ7RT61SV",
			Amount:        decimal.NewFromInt(50000),
			CompletedAt:   created.Add(2 * time.Minute),
		},
		CreatedAt: created,
	}

	p := OrderConfirmation(order, "https://shop.example.com/", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "Jane", p["customer_name"])
	assert.Equal(t, "3E4F5A6B", p["order_id"])
	assert.Equal(t, "50,000", p["total_amount"])
	assert.Equal(t, "50,000", p["amount_paid"])
	assert.Equal(t, "NLJ7RT61SV", p["receipt_number"])
	assert.Equal(t, "Not specified", p["delivery_address"])
	assert.Equal(t, "1 Mar 2025, 12:30", p["order_date"])
	assert.Equal(t, "1 Mar 2025, 12:32", p["payment_time"])
	assert.Equal(t, "https://shop.example.com/order-confirmation/"+order.ID, p["order_link"])
	assert.Equal(t, "2025", p["current_year"])
	assert.Contains(t, p["items_list"], "Air &lt;Max&gt;")
	assert.Contains(t, p["items_list"], "KSh 40,000")
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"0":        "0",
		"999":      "999",
		"1000":     "1,000",
		"50000":    "50,000",
		"1234567":  "1,234,567",
		"1234.5":   "1,234.50",
		"1234.999": "1,235",
		"-2500":    "-2,500",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), in)
	}
}
