package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/crestrock/storefront/internal/remote"
)

const DefaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

type EmailJSConfig struct {
	Endpoint   string
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

// EmailJS sends through the EmailJS REST API. The private key is required
// when the account restricts calls from non-browser clients.
type EmailJS struct {
	cfg  EmailJSConfig
	http *http.Client
}

type emailJSRequest struct {
	ServiceID      string `json:"service_id"`
	TemplateID     string `json:"template_id"`
	UserID         string `json:"user_id"`
	AccessToken    string `json:"accessToken,omitempty"`
	TemplateParams Params `json:"template_params"`
}

func NewEmailJS(cfg EmailJSConfig) (*EmailJS, error) {
	if cfg.ServiceID == "" || cfg.TemplateID == "" || cfg.PublicKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEmailJSEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &EmailJS{cfg: cfg, http: remote.NewHTTPClient(cfg.Timeout)}, nil
}

func (e *EmailJS) Send(ctx context.Context, to string, params Params) (*Result, error) {
	tp := make(Params, len(params)+1)
	for k, v := range params {
		tp[k] = v
	}
	tp["to_email"] = to

	payload, err := json.Marshal(emailJSRequest{
		ServiceID:      e.cfg.ServiceID,
		TemplateID:     e.cfg.TemplateID,
		UserID:         e.cfg.PublicKey,
		AccessToken:    e.cfg.PrivateKey,
		TemplateParams: tp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// EmailJS answers with plain text ("OK" on success, the reason otherwise).
	if body, _, err := remote.Do(ctx, e.http, "send email", req); err != nil {
		msg := fmt.Sprintf("Failed to send email: %v", err)
		if reason := remote.Snippet(body, 200); reason != "" {
			msg += ": " + reason
		}
		return &Result{Success: false, Message: msg}, err
	}
	return &Result{Success: true, Message: "Order confirmation email sent successfully"}, nil
}
