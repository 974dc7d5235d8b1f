// Package remote holds the JSON-over-HTTP plumbing shared by the outbound
// clients (payment gateway, storefront API, email dispatch).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodySize = 1 << 20

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer. Body keeps the raw payload for logs
// and must never reach a shopper; Message is the remote's string
// "message" or "error" field, or "".
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Do sends req and returns the response body of a 2xx answer.
func Do(ctx context.Context, client *http.Client, op string, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(body),
			Body:       body,
		}
	}
	return body, resp.StatusCode, nil
}

// DoJSON encodes in (when non-nil) as the request body and decodes a 2xx
// response into out (when non-nil).
func DoJSON(ctx context.Context, client *http.Client, op, method, url string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, _, err := Do(ctx, client, op, req)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// extractMessage returns the remote's own explanation. Only string
// "message" or "error" fields count; anything else (HTML error pages,
// structured error objects) yields "" and stays in Body for the logs.
func extractMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if msg := StringField(payload.Message); msg != "" {
		return msg
	}
	return StringField(payload.Error)
}

// StringField decodes raw as a JSON string and returns "" for any other
// JSON value.
func StringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Snippet shortens a payload for logging without splitting a UTF-8
// sequence.
func Snippet(body []byte, limit int) string {
	if len(body) > limit {
		body = body[:limit]
	}
	return strings.ToValidUTF8(string(body), "")
}
