package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/internal/pkg/credits"
	"github.com/accessibility-build/platform/internal/pkg/pricing"
)

const testWebhookSecret = "whsec_test_secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.BillingCustomer{},
		&models.BillingWebhookEvent{},
		&models.CreditBalance{},
		&models.CreditTransaction{},
	))
	return db
}

func signed(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	s := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return s.Payload, s.Header
}

func checkoutEvent(eventID, sessionID, paymentStatus, credits string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","mode":"payment","payment_status":%q,"customer":"cus_123","client_reference_id":"7","customer_details":{"email":"ada@example.com"},"metadata":{"user_id":"7","credits":%q,"tier":"Popular"}}}}`,
		eventID, sessionID, paymentStatus, credits)
}

type processorFixture struct {
	processor *WebhookProcessor
	billing   *Service
	credits   *credits.Service
}

func newProcessor(t *testing.T) processorFixture {
	db := newTestDB(t)
	svc := NewServiceFromDB(db)
	ledger := credits.NewService(credits.NewRepository(db), nil)
	return processorFixture{
		processor: NewWebhookProcessor(Config{WebhookSecret: testWebhookSecret}, svc, ledger),
		billing:   svc,
		credits:   ledger,
	}
}

func TestWebhookGrantsCreditsOnPaidCheckout(t *testing.T) {
	f := newProcessor(t)
	ctx := context.Background()

	payload, header := signed(t, checkoutEvent("evt_1", "cs_1", "paid", "1500"))
	out, err := f.processor.Handle(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), out.Granted)
	assert.Equal(t, uint(7), out.UserID)
	assert.False(t, out.Duplicate)

	balance, err := f.credits.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	customerID, err := f.billing.CustomerID(ctx, 7, models.BillingProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", customerID)

	events, err := f.billing.RecentWebhookEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsProcessed())
}

func TestWebhookDuplicateDeliveryIsIgnored(t *testing.T) {
	f := newProcessor(t)
	ctx := context.Background()

	payload, header := signed(t, checkoutEvent("evt_dup", "cs_dup", "paid", "100"))
	_, err := f.processor.Handle(ctx, payload, header)
	require.NoError(t, err)

	payload, header = signed(t, checkoutEvent("evt_dup", "cs_dup", "paid", "100"))
	out, err := f.processor.Handle(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	balance, err := f.credits.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestWebhookSameSessionInTwoEventsGrantsOnce(t *testing.T) {
	f := newProcessor(t)
	ctx := context.Background()

	payload, header := signed(t, checkoutEvent("evt_a", "cs_same", "paid", "250"))
	_, err := f.processor.Handle(ctx, payload, header)
	require.NoError(t, err)

	payload, header = signed(t, checkoutEvent("evt_b", "cs_same", "paid", "250"))
	out, err := f.processor.Handle(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Granted)

	balance, err := f.credits.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance)
}

func TestWebhookUnpaidCheckoutDoesNotGrant(t *testing.T) {
	f := newProcessor(t)
	ctx := context.Background()

	payload, header := signed(t, checkoutEvent("evt_unpaid", "cs_unpaid", "unpaid", "500"))
	out, err := f.processor.Handle(ctx, payload, header)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Granted)

	balance, err := f.credits.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestWebhookFailedEventIsRetried(t *testing.T) {
	f := newProcessor(t)
	ctx := context.Background()

	bad := checkoutEvent("evt_retry", "cs_retry", "paid", "abc")
	payload, header := signed(t, bad)
	_, err := f.processor.Handle(ctx, payload, header)
	require.Error(t, err)

	payload, header = signed(t, bad)
	out, err := f.processor.Handle(ctx, payload, header)
	require.Error(t, err)
	assert.False(t, out.Duplicate)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newProcessor(t)

	payload, _ := signed(t, checkoutEvent("evt_sig", "cs_sig", "paid", "100"))
	_, err := f.processor.Handle(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.processor.Handle(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhookIgnoresUnhandledTypes(t *testing.T) {
	f := newProcessor(t)

	payload, header := signed(t, `{"id":"evt_other","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	out, err := f.processor.Handle(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", out.EventType)
	assert.Equal(t, int64(0), out.Granted)
}

func TestWebhookNotConfigured(t *testing.T) {
	p := NewWebhookProcessor(Config{}, nil, nil)
	_, err := p.Handle(context.Background(), []byte("{}"), "sig")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateCheckoutBuildsPricedLineItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewServiceFromDB(db)
	cs := NewCheckoutService(Config{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://example.com/billing/success",
		CancelURL:  "https://example.com/billing/cancel",
	}, pricing.Default(), svc)

	var captured *stripe.CheckoutSessionParams
	cs.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}

	res, err := cs.CreateCheckout(context.Background(), 7, "ada@example.com", 1500)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "Popular", res.Calculation.Tier.Label)

	require.NotNil(t, captured)
	require.Len(t, captured.LineItems, 1)
	item := captured.LineItems[0]
	assert.Equal(t, int64(5700), *item.PriceData.UnitAmount)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "1500", captured.Metadata[MetaCredits])
	assert.Equal(t, "7", captured.Metadata[MetaUserID])
	assert.Equal(t, "57.00", captured.Metadata[MetaTotal])
	assert.Equal(t, "ada@example.com", *captured.CustomerEmail)
	assert.Nil(t, captured.Customer)
}

func TestCreateCheckoutReusesLinkedCustomer(t *testing.T) {
	db := newTestDB(t)
	svc := NewServiceFromDB(db)
	_, err := svc.LinkCustomer(context.Background(), 7, models.BillingProviderStripe, "cus_existing", "ada@example.com")
	require.NoError(t, err)

	cs := NewCheckoutService(Config{SecretKey: "sk_test_123"}, pricing.Default(), svc)
	var captured *stripe.CheckoutSessionParams
	cs.createCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/c/pay/cs_2"}, nil
	}

	_, err = cs.CreateCheckout(context.Background(), 7, "ada@example.com", 100)
	require.NoError(t, err)
	require.NotNil(t, captured.Customer)
	assert.Equal(t, "cus_existing", *captured.Customer)
	assert.Nil(t, captured.CustomerEmail)
}

func TestCreateCheckoutRejectsInvalidInput(t *testing.T) {
	cs := NewCheckoutService(Config{SecretKey: "sk_test_123"}, pricing.Default(), nil)
	cs.createCheckoutSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		t.Fatal("provider must not be called")
		return nil, nil
	}

	_, err := cs.CreateCheckout(context.Background(), 1, "", 50)
	assert.ErrorIs(t, err, ErrInvalidCredits)

	_, err = cs.CreateCheckout(context.Background(), 1, "", 200000)
	assert.ErrorIs(t, err, ErrInvalidCredits)

	unconfigured := NewCheckoutService(Config{}, pricing.Default(), nil)
	_, err = unconfigured.CreateCheckout(context.Background(), 1, "", 500)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateCheckoutProviderError(t *testing.T) {
	cs := NewCheckoutService(Config{SecretKey: "sk_test_123"}, pricing.Default(), nil)
	cs.createCheckoutSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("boom")
	}
	_, err := cs.CreateCheckout(context.Background(), 1, "", 500)
	assert.Error(t, err)

	cs.createCheckoutSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{ID: "cs_empty"}, nil
	}
	_, err = cs.CreateCheckout(context.Background(), 1, "", 500)
	assert.Error(t, err)
}
