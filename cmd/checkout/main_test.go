package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
)

func TestParseItems(t *testing.T) {
	lines, err := parseItems("p1:2, p2 ,p3:1")
	require.NoError(t, err)
	assert.Equal(t, []dto.CartLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p3", Quantity: 1},
	}, lines)
}

func TestParseItems_Errors(t *testing.T) {
	_, err := parseItems("")
	assert.Error(t, err)

	_, err = parseItems("p1:two")
	assert.Error(t, err)
}

func TestRealMain_MissingItems(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := realMain([]string{"-name", "Jane"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-items is required")
}

func TestRealMain_BadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, realMain([]string{"-nope"}, &stdout, &stderr))
}

// storeAPI answers the three calls a cash checkout makes.
func storeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	var created dto.OrderResponse
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/cart/quote", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.QuoteResponse{
			Items: []dto.LineItemDTO{{ProductID: "p1", Name: "Air Max", Brand: "Nike", UnitPrice: decimal.NewFromInt(12500), Quantity: 2}},
			Total: decimal.NewFromInt(25000),
		})
	})
	mux.HandleFunc("POST /api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		created = dto.OrderResponse{
			ID:            "5b1e7c2a-0d4f-4f43-9a57-1c2d3e4f5a6b",
			Status:        model.OrderStatusPending,
			Total:         decimal.NewFromInt(25000),
			Items:         req.Items,
			Customer:      req.Customer,
			PaymentMethod: req.PaymentMethod,
			CreatedAt:     time.Now(),
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	})
	mux.HandleFunc("GET /api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(created)
	})
	return httptest.NewServer(mux)
}

func TestRealMain_CashPrintsWhatsAppLink(t *testing.T) {
	srv := storeAPI(t)
	defer srv.Close()
	t.Setenv("STOREFRONT_API_URL", srv.URL)
	t.Setenv("WHATSAPP_NUMBER", "254700000009")

	var stdout, stderr bytes.Buffer
	code := realMain([]string{
		"-items", "p1:2", "-name", "Jane", "-phone", "0712345678",
		"-address", "Kilimani, Nairobi", "-method", "cash",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Order #ORD-3E4F5A6B placed, total KSh 25,000")

	var link string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "https://wa.me/") {
			link = line
		}
	}
	require.NotEmpty(t, link, out)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/254700000009", u.Path)
	text := u.Query().Get("text")
	assert.Contains(t, text, "• Air Max - Qty: 2 - KSh 25,000")
	assert.Contains(t, text, "Delivery Address: Kilimani, Nairobi")
}
