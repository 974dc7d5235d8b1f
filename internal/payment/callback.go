package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedCallback = errors.New("malformed payment callback")

// Daraja timestamps (yyyyMMddHHmmss) are East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

type callbackEnvelope struct {
	Body struct {
		STKCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []struct {
			Name  string          `json:"Name"`
			Value json.RawMessage `json:"Value"`
		} `json:"Item"`
	} `json:"CallbackMetadata"`
}

// Result is a decoded STK callback.
type Result struct {
	MerchantRequestID string
	CheckoutRequestID string
	Success           bool
	ResultCode        int
	ResultDesc        string
	Receipt           string
	Amount            decimal.Decimal
	Phone             string
	CompletedAt       time.Time
}

func ParseCallback(body []byte) (*Result, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.STKCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing stkCallback", ErrMalformedCallback)
	}

	res := &Result{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Success:           cb.ResultCode == 0,
	}
	if !res.Success {
		return res, nil
	}
	if cb.CallbackMetadata == nil {
		return nil, fmt.Errorf("%w: success without metadata", ErrMalformedCallback)
	}

	for _, item := range cb.CallbackMetadata.Item {
		value := rawString(item.Value)
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: amount %q", ErrMalformedCallback, value)
			}
			res.Amount = amount
		case "MpesaReceiptNumber":
			res.Receipt = value
		case "PhoneNumber":
			res.Phone = value
		case "TransactionDate":
			ts, err := time.ParseInLocation("20060102150405", value, eat)
			if err != nil {
				return nil, fmt.Errorf("%w: transaction date %q", ErrMalformedCallback, value)
			}
			res.CompletedAt = ts.UTC()
		}
	}
	if res.Receipt == "" {
		return nil, fmt.Errorf("%w: success without receipt", ErrMalformedCallback)
	}
	return res, nil
}

// rawString accepts both quoted and bare JSON scalars.
func rawString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
