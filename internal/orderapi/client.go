// Package orderapi talks to a running storefront API as an order store,
// for checkout sessions that run outside the server process.
package orderapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/reconcile"
	"github.com/crestrock/storefront/internal/remote"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    remote.NewHTTPClient(timeout),
	}
}

var _ reconcile.OrderStore = (*Client)(nil)

// CreateOrder submits the order once and overwrites it with what the
// store saved, including the assigned id, status and catalog prices.
func (c *Client) CreateOrder(ctx context.Context, order *model.Order) error {
	req := dto.CreateOrderRequest{
		Items:         dto.NewLineItems(order.Items),
		Customer:      dto.NewCustomer(order.Customer),
		PaymentMethod: order.PaymentMethod,
	}
	var resp dto.OrderResponse
	if err := remote.DoJSON(ctx, c.http, "create order", http.MethodPost, c.baseURL+"/orders", req, &resp); err != nil {
		return err
	}
	if resp.ID == "" {
		return fmt.Errorf("create order: response without id")
	}
	*order = *resp.Model()
	return nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var resp dto.OrderResponse
	err := remote.DoJSON(ctx, c.http, "get order", http.MethodGet, c.baseURL+"/orders/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return resp.Model(), nil
}

func (c *Client) AttachPaymentRequest(ctx context.Context, id string, req model.PaymentRequest) error {
	body := dto.PaymentRequestDTO{
		MerchantRequestID: req.MerchantRequestID,
		CheckoutRequestID: req.CheckoutRequestID,
	}
	err := remote.DoJSON(ctx, c.http, "attach payment request", http.MethodPut,
		c.baseURL+"/orders/"+url.PathEscape(id)+"/payment-request", body, nil)
	return notFound(err, ErrOrderNotFound)
}

func (c *Client) GetProduct(ctx context.Context, id string) (*dto.ProductResponse, error) {
	var resp dto.ProductResponse
	err := remote.DoJSON(ctx, c.http, "get product", http.MethodGet, c.baseURL+"/products/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return &resp, nil
}

// Snapshot prices cart lines with the store's catalog.
func (c *Client) Snapshot(ctx context.Context, lines []dto.CartLine) ([]model.LineItem, error) {
	var resp dto.QuoteResponse
	err := remote.DoJSON(ctx, c.http, "quote cart", http.MethodPost, c.baseURL+"/cart/quote", dto.QuoteRequest{Items: lines}, &resp)
	if err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return dto.LineItemModels(resp.Items), nil
}

func notFound(err, sentinel error) error {
	var re *remote.RemoteError
	if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
