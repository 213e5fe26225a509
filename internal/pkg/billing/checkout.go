package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/internal/pkg/pricing"
)

// Metadata keys written on checkout sessions and read back by the webhook.
const (
	MetaUserID  = "user_id"
	MetaCredits = "credits"
	MetaTier    = "tier"
	MetaTotal   = "total"
)

// CheckoutService creates one-off Stripe Checkout sessions for credit packs.
type CheckoutService struct {
	cfg     Config
	table   *pricing.Table
	billing *Service

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewCheckoutService wires the Stripe client. The API key is set once here.
func NewCheckoutService(cfg Config, table *pricing.Table, billing *Service) *CheckoutService {
	if cfg.CheckoutEnabled() {
		stripe.Key = strings.TrimSpace(cfg.SecretKey)
	}
	return &CheckoutService{
		cfg:                   cfg,
		table:                 table,
		billing:               billing,
		createCheckoutSession: stripesession.New,
	}
}

// CreateCheckout prices credits and opens a hosted checkout for the user.
// Unlike pricing.Calculate, out-of-range quantities are rejected here so a
// customer is never charged for a different amount than requested.
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID uint, email string, credits int) (*CheckoutResult, error) {
	if !s.cfg.CheckoutEnabled() {
		return nil, ErrNotConfigured
	}
	if v := s.table.Validate(float64(credits)); !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredits, v.Error)
	}

	calc := s.table.Calculate(credits)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(userID), 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.currency()),
					UnitAmount: stripe.Int64(pricing.Cents(calc.Total)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("%d credits", calc.Credits)),
						Description: stripe.String(fmt.Sprintf("%s tier, %s per credit", calc.Tier.Label, calc.Tier.PricePerCredit.String())),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			MetaUserID:  strconv.FormatUint(uint64(userID), 10),
			MetaCredits: strconv.Itoa(calc.Credits),
			MetaTier:    calc.Tier.Label,
			MetaTotal:   calc.Total.StringFixed(2),
		},
	}

	customerID := ""
	if s.billing != nil {
		id, err := s.billing.CustomerID(ctx, userID, models.BillingProviderStripe)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("[Billing] customer lookup failed, falling back to email")
		}
		customerID = id
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		if e := strings.TrimSpace(email); e != "" {
			params.CustomerEmail = stripe.String(e)
		}
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
	}

	session, err := s.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, fmt.Errorf("stripe returned empty checkout URL")
	}

	log.Info().
		Uint("user_id", userID).
		Int("credits", calc.Credits).
		Str("tier", calc.Tier.Label).
		Str("total", calc.Total.StringFixed(2)).
		Str("session_id", session.ID).
		Msg("[Billing] checkout session created")

	return &CheckoutResult{
		SessionID:   session.ID,
		URL:         strings.TrimSpace(session.URL),
		Calculation: calc,
	}, nil
}
