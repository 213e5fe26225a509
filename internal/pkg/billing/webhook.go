package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/internal/pkg/credits"
)

// CreditGranter is the part of the credit ledger the webhook needs.
type CreditGranter interface {
	Grant(ctx context.Context, userID uint, amount int64, kind, reference, note string) (credits.GrantResult, error)
}

// WebhookProcessor verifies and applies Stripe webhook deliveries.
type WebhookProcessor struct {
	cfg     Config
	billing *Service
	credits CreditGranter
}

// NewWebhookProcessor creates a processor.
func NewWebhookProcessor(cfg Config, billing *Service, grants CreditGranter) *WebhookProcessor {
	return &WebhookProcessor{cfg: cfg, billing: billing, credits: grants}
}

// Handle verifies the signature, records the event once and applies it.
// Deliveries that were already processed successfully are acknowledged
// without side effects; failed ones are retried.
func (p *WebhookProcessor) Handle(ctx context.Context, payload []byte, sigHeader string) (WebhookOutcome, error) {
	if !p.cfg.WebhooksEnabled() {
		return WebhookOutcome{}, ErrNotConfigured
	}
	if strings.TrimSpace(sigHeader) == "" {
		return WebhookOutcome{}, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookOutcome{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	outcome := WebhookOutcome{EventID: event.ID, EventType: string(event.Type)}

	created, stored, err := p.billing.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return outcome, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.IsProcessed() {
		outcome.Duplicate = true
		log.Info().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("[Billing] duplicate webhook ignored")
		return outcome, nil
	}

	procErr := p.dispatch(ctx, &event, &outcome)
	if err := p.billing.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("[Billing] failed to mark webhook processed")
	}
	if procErr != nil {
		log.Error().Err(procErr).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("[Billing] webhook processing failed")
		return outcome, procErr
	}
	return outcome, nil
}

func (p *WebhookProcessor) dispatch(ctx context.Context, event *stripe.Event, outcome *WebhookOutcome) error {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return p.handleCheckout(ctx, session, outcome)
	default:
		log.Debug().Str("type", string(event.Type)).Str("event_id", event.ID).Msg("[Billing] webhook ignored (unhandled type)")
		return nil
	}
}

func (p *WebhookProcessor) handleCheckout(ctx context.Context, session CheckoutSession, outcome *WebhookOutcome) error {
	if session.Mode != "" && session.Mode != string(stripe.CheckoutSessionModePayment) {
		log.Info().Str("session_id", session.ID).Str("mode", session.Mode).Msg("[Billing] non-payment checkout ignored")
		return nil
	}
	// Delayed payment methods complete later with async_payment_succeeded.
	if session.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) {
		log.Info().Str("session_id", session.ID).Str("payment_status", session.PaymentStatus).Msg("[Billing] checkout not paid yet")
		return nil
	}

	userID, err := parseUserID(session)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(session.Metadata[MetaCredits]), 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("checkout %s: invalid credits metadata %q", session.ID, session.Metadata[MetaCredits])
	}

	note := fmt.Sprintf("Checkout %s (%s)", session.ID, session.Metadata[MetaTier])
	res, err := p.credits.Grant(ctx, userID, amount, models.CreditKindPurchase, "stripe:"+session.ID, note)
	if err != nil {
		return err
	}
	outcome.UserID = userID
	if res.Applied {
		outcome.Granted = amount
	}

	if session.Customer != "" {
		if _, err := p.billing.LinkCustomer(ctx, userID, models.BillingProviderStripe, session.Customer, session.Email()); err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("[Billing] failed to link customer")
		}
	}

	log.Info().
		Uint("user_id", userID).
		Int64("credits", amount).
		Bool("applied", res.Applied).
		Int64("balance", res.Balance).
		Str("session_id", session.ID).
		Msg("[Billing] checkout fulfilled")
	return nil
}

func parseUserID(session CheckoutSession) (uint, error) {
	raw := strings.TrimSpace(session.Metadata[MetaUserID])
	if raw == "" {
		raw = strings.TrimSpace(session.ClientReferenceID)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("checkout " + session.ID + ": missing user reference")
	}
	return uint(id), nil
}
