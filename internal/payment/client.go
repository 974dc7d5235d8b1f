// Package payment talks to the M-Pesa gateway service: it starts STK push
// requests and decodes the asynchronous result callbacks.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/remote"
)

const genericFailure = "payment request failed"

// GatewayError is a failure reported by the gateway itself. Message is the
// gateway's own explanation and may be shown to the customer as is; Body
// is the raw answer, for logs only.
type GatewayError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return genericFailure
	}
	return e.Message
}

type STKPushRequest struct {
	PhoneNumber      string `json:"phoneNumber"`
	Amount           int64  `json:"amount"`
	OrderID          string `json:"orderId"`
	AccountReference string `json:"accountReference"`
	TransactionDesc  string `json:"transactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// envelope is the gateway's answer. error is sometimes a string and
// sometimes an object, so both text fields are decoded lazily.
type envelope struct {
	Success bool             `json:"success"`
	Message json.RawMessage  `json:"message"`
	Error   json.RawMessage  `json:"error"`
	Data    *STKPushResponse `json:"data"`
}

func (e envelope) message() string {
	if msg := remote.StringField(e.Message); msg != "" {
		return msg
	}
	return remote.StringField(e.Error)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    remote.NewHTTPClient(timeout),
	}
}

// Initiate sends one STK push. It is never retried: a second push would
// prompt the customer twice.
func (c *Client) Initiate(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	var env envelope
	err := remote.DoJSON(ctx, c.http, "stk push", http.MethodPost, c.baseURL+"/mpesa/stk-push", req, &env)
	if err != nil {
		var re *remote.RemoteError
		if errors.As(err, &re) {
			return nil, &GatewayError{StatusCode: re.StatusCode, Message: re.Message, Body: re.Body}
		}
		return nil, err
	}

	if !env.Success || env.Data == nil || env.Data.CheckoutRequestID == "" {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: env.message()}
	}
	return env.Data, nil
}

func (c *Client) Health(ctx context.Context) error {
	if err := remote.DoJSON(ctx, c.http, "gateway health", http.MethodGet, c.baseURL+"/health", nil, nil); err != nil {
		return fmt.Errorf("check gateway: %w", err)
	}
	return nil
}

// WholeAmount rounds up to whole shillings; the gateway rejects fractions.
func WholeAmount(amount decimal.Decimal) int64 {
	return amount.Ceil().IntPart()
}
