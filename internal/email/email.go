// Package email dispatches transactional email through a hosted template
// service.
package email

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("email dispatch not configured")

// Params are the template fields substituted by the email service.
type Params map[string]string

type Result struct {
	Success bool
	Message string
}

type Sender interface {
	Send(ctx context.Context, to string, params Params) (*Result, error)
}
