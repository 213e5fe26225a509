package billing

import (
	"errors"
	"strings"

	"github.com/accessibility-build/platform/internal/pkg/pricing"
)

var (
	ErrNotConfigured    = errors.New("billing: payment provider is not configured")
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrInvalidCredits   = errors.New("billing: invalid credit quantity")
)

// Config holds the payment provider settings.
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

// CheckoutEnabled reports whether checkout sessions can be created.
func (c Config) CheckoutEnabled() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

// WebhooksEnabled reports whether incoming webhooks can be verified.
func (c Config) WebhooksEnabled() bool {
	return strings.TrimSpace(c.WebhookSecret) != ""
}

func (c Config) currency() string {
	if cur := strings.ToLower(strings.TrimSpace(c.Currency)); cur != "" {
		return cur
	}
	return "usd"
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

// CheckoutResult is returned to the browser, which redirects to URL.
type CheckoutResult struct {
	SessionID   string              `json:"session_id"`
	URL         string              `json:"url"`
	Calculation pricing.Calculation `json:"-"`
}

// CheckoutSession is the subset of a checkout.session object we read from
// webhook payloads.
type CheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	PaymentStatus     string            `json:"payment_status"`
	Customer          string            `json:"customer"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// Email returns the best known payer email.
func (s CheckoutSession) Email() string {
	if e := strings.TrimSpace(s.CustomerDetails.Email); e != "" {
		return e
	}
	return strings.TrimSpace(s.CustomerEmail)
}

// WebhookOutcome describes what Handle did with one delivery.
type WebhookOutcome struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
	Granted   int64  `json:"granted"`
	UserID    uint   `json:"user_id,omitempty"`
}
