package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/markbates/goth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/billing"
	"github.com/accessibility-build/platform/internal/pkg/cache"
	"github.com/accessibility-build/platform/internal/pkg/credits"
	"github.com/accessibility-build/platform/internal/pkg/database"
	"github.com/accessibility-build/platform/internal/pkg/middleware"
	"github.com/accessibility-build/platform/internal/pkg/pricing"
	"github.com/accessibility-build/platform/internal/pkg/statistics"
	"github.com/accessibility-build/platform/internal/pkg/tools"
	"github.com/accessibility-build/platform/internal/pkg/triallimit"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

const testWebhookSecret = "whsec_controller_test"

type harness struct {
	app     *fiber.App
	repos   *repository.Repositories
	credits *credits.Service
	mr      *miniredis.Miniredis
}

func newHarness(t *testing.T, billingCfg billing.Config) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() { _ = client.Close() })

	repos := repository.NewRepositories(db)
	creditService := credits.NewService(credits.NewRepository(db), repos.User)
	billingService := billing.NewServiceFromDB(db)
	limiter := triallimit.New(repos.TrialUsage, triallimit.DefaultConfig())
	stats := statistics.NewService(repos, creditService)

	pc := NewPricingController(pricing.Default())
	tc := NewToolController(tools.NewRunner(nil), limiter, creditService)
	bc := NewBillingController(
		billing.NewCheckoutService(billingCfg, pricing.Default(), billingService),
		billing.NewWebhookProcessor(billingCfg, billingService, creditService),
	)
	uc := NewUserController(repos, creditService)
	ac := NewAdminController(repos, creditService, stats, limiter, billingService)

	app := fiber.New()
	// Stand-in for the session middleware: X-Test-User carries the user id.
	app.Use(func(c *fiber.Ctx) error {
		current := usercontext.UserContext{}
		if id, err := strconv.Atoi(c.Get("X-Test-User")); err == nil {
			if u, err := repos.User.GetByID(uint(id)); err == nil {
				current = usercontext.UserContext{
					UserID:     u.ID,
					Username:   u.Name,
					Email:      u.Email,
					IsLoggedIn: true,
					IsAdmin:    u.IsAdmin(),
					Plan:       u.Plan,
				}
			}
		}
		usercontext.Set(c, current)
		return c.Next()
	})

	app.Get("/api/pricing", pc.HandleCalculate)
	app.Get("/api/pricing/tiers", pc.HandleTiers)
	app.Post("/api/pricing/validate", pc.HandleValidate)
	app.Get("/api/tools", tc.HandleListTools)
	app.Post("/api/tools/:tool", tc.HandleRun)
	app.Get("/api/trial/status/:tool", tc.HandleTrialStatus)
	app.Post("/api/billing/checkout", middleware.RequireAPISessionAuth, bc.HandleCreateCheckout)
	app.Post("/webhooks/stripe", bc.HandleStripeWebhook)
	app.Get("/api/user", middleware.RequireAPISessionAuth, uc.HandleGetAccount)
	app.Get("/api/user/credits", middleware.RequireAPISessionAuth, uc.HandleGetCredits)

	admin := app.Group("/admin/api", middleware.RequireAdmin)
	admin.Get("/stats", ac.HandleStats)
	admin.Get("/trial-usage", ac.HandleTrialUsage)
	admin.Get("/users", ac.HandleUsers)
	admin.Post("/users/:id/credits", ac.HandleAdjustCredits)
	admin.Post("/users/:id/status", ac.HandleUserStatus)

	return &harness{app: app, repos: repos, credits: creditService, mr: mr}
}

func (h *harness) user(t *testing.T, email, role string) *models.User {
	t.Helper()
	u, err := models.NewOAuthUser("Tester", email, "")
	require.NoError(t, err)
	u.Role = role
	require.NoError(t, h.repos.User.Create(u))
	return u
}

type response struct {
	status int
	header http.Header
	body   map[string]interface{}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, header: resp.Header, body: map[string]interface{}{}}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func asUser(u *models.User) map[string]string {
	return map[string]string{"X-Test-User": strconv.FormatUint(uint64(u.ID), 10)}
}

func fromIP(ip string) map[string]string {
	return map[string]string{"X-Forwarded-For": ip}
}

func TestPricingEndpoints(t *testing.T) {
	h := newHarness(t, billing.Config{})

	res := h.do(t, http.MethodGet, "/api/pricing?credits=1500", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	calc := res.body["calculation"].(map[string]interface{})
	assert.Equal(t, "57", calc["total"])
	assert.Equal(t, "Popular", calc["tier"].(map[string]interface{})["label"])
	assert.Equal(t, "$57.00", res.body["formatted"].(map[string]interface{})["total"])
	assert.Equal(t, true, res.body["validation"].(map[string]interface{})["valid"])

	res = h.do(t, http.MethodGet, "/api/pricing?credits=50", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(100), res.body["calculation"].(map[string]interface{})["credits"])
	assert.Equal(t, "Minimum purchase is 100 credits", res.body["validation"].(map[string]interface{})["error"])

	res = h.do(t, http.MethodGet, "/api/pricing?credits=lots", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "invalid_credits", res.body["error"])

	res = h.do(t, http.MethodGet, "/api/pricing/tiers", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["tiers"], 5)
	assert.Equal(t, float64(100000), res.body["max_credits"])

	res = h.do(t, http.MethodPost, "/api/pricing/validate", `{"credits":250.5}`, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, false, res.body["valid"])
	assert.Equal(t, "Credits must be a whole number", res.body["error"])

	res = h.do(t, http.MethodPost, "/api/pricing/validate", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
}

const contrastBody = `{"foreground":"#000","background":"#fff"}`

func TestAnonymousTrialFlow(t *testing.T) {
	h := newHarness(t, billing.Config{})

	for i := 4; i >= 0; i-- {
		res := h.do(t, http.MethodPost, "/api/tools/contrast_checker", contrastBody, fromIP("1.2.3.4"))
		require.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, float64(21), res.body["result"].(map[string]interface{})["ratio"])
		assert.Equal(t, float64(i), res.body["trial"].(map[string]interface{})["remaining"])
	}

	// the limit is shared by every tool
	res := h.do(t, http.MethodPost, "/api/tools/json-formatter", `{"input":"{}"}`, fromIP("1.2.3.4"))
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, "trial_exhausted", res.body["error"])
	assert.NotEmpty(t, res.header.Get("Retry-After"))

	res = h.do(t, http.MethodGet, "/api/trial/status/contrast_checker", "", fromIP("1.2.3.4"))
	require.Equal(t, http.StatusOK, res.status)
	status := res.body["status"].(map[string]interface{})
	assert.Equal(t, "exhausted", status["state"])
	assert.Equal(t, false, status["allowed"])

	// other visitors are unaffected
	res = h.do(t, http.MethodPost, "/api/tools/contrast_checker", contrastBody, fromIP("5.6.7.8"))
	assert.Equal(t, http.StatusOK, res.status)

	count, err := h.repos.TrialUsage.CountAllSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)

	pending, err := h.mr.HKeys("tools:counters:usage")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAnonymousTrialGates(t *testing.T) {
	h := newHarness(t, billing.Config{})

	res := h.do(t, http.MethodPost, "/api/tools/url_accessibility_auditor", `{"url":"https://example.com"}`, fromIP("1.2.3.4"))
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "login_required", res.body["error"])

	res = h.do(t, http.MethodPost, "/api/tools/contrast_checker", contrastBody, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "trial_unavailable", res.body["error"])

	res = h.do(t, http.MethodPost, "/api/tools/nope", contrastBody, fromIP("1.2.3.4"))
	assert.Equal(t, http.StatusNotFound, res.status)

	// failed runs do not use up the trial
	res = h.do(t, http.MethodPost, "/api/tools/contrast_checker", `{"foreground":"red"}`, fromIP("1.2.3.4"))
	assert.Equal(t, http.StatusBadRequest, res.status)
	res = h.do(t, http.MethodGet, "/api/trial/status/contrast_checker", "", fromIP("1.2.3.4"))
	assert.Equal(t, float64(5), res.body["status"].(map[string]interface{})["remaining"])
	assert.Equal(t, "fresh", res.body["status"].(map[string]interface{})["state"])
}

func TestSignedInToolUseConsumesCredits(t *testing.T) {
	h := newHarness(t, billing.Config{})
	u := h.user(t, "ada@example.com", models.ROLE_USER)

	res := h.do(t, http.MethodPost, "/api/tools/contrast_checker", contrastBody, asUser(u))
	assert.Equal(t, http.StatusPaymentRequired, res.status)
	assert.Equal(t, "insufficient_credits", res.body["error"])

	_, err := h.credits.Grant(context.Background(), u.ID, 10, models.CreditKindPurchase, "test:grant", "")
	require.NoError(t, err)

	res = h.do(t, http.MethodPost, "/api/tools/json_formatter", `{"input":"{\"a\": 1}","indent":0}`, asUser(u))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, `{"a":1}`, res.body["result"].(map[string]interface{})["output"])
	assert.Equal(t, float64(9), res.body["credits"].(map[string]interface{})["balance"])

	// invalid input is not charged
	res = h.do(t, http.MethodPost, "/api/tools/json_formatter", `{"input":"{"}`, asUser(u))
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = h.do(t, http.MethodGet, "/api/user/credits", "", asUser(u))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(9), res.body["balance"])
	assert.Len(t, res.body["transactions"], 2)

	res = h.do(t, http.MethodGet, "/api/user", "", asUser(u))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "premium", res.body["plan"])
	assert.Equal(t, float64(9), res.body["credits"])

	res = h.do(t, http.MethodGet, "/api/user/credits", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestCheckoutErrors(t *testing.T) {
	h := newHarness(t, billing.Config{})
	u := h.user(t, "ada@example.com", models.ROLE_USER)

	res := h.do(t, http.MethodPost, "/api/billing/checkout", `{"credits":1500}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = h.do(t, http.MethodPost, "/api/billing/checkout", `{"credits":1500}`, asUser(u))
	assert.Equal(t, http.StatusServiceUnavailable, res.status)

	configured := newHarness(t, billing.Config{SecretKey: "sk_test_dummy"})
	u = configured.user(t, "grace@example.com", models.ROLE_USER)
	res = configured.do(t, http.MethodPost, "/api/billing/checkout", `{"credits":50}`, asUser(u))
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Minimum purchase is 100 credits", res.body["message"])

	res = configured.do(t, http.MethodPost, "/api/billing/checkout", `{"credits":0}`, asUser(u))
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func signedEvent(t *testing.T, payload string) (string, string) {
	t.Helper()
	s := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return string(s.Payload), s.Header
}

func TestStripeWebhook(t *testing.T) {
	h := newHarness(t, billing.Config{WebhookSecret: testWebhookSecret})
	u := h.user(t, "ada@example.com", models.ROLE_USER)

	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","mode":"payment","payment_status":"paid","customer":"cus_1","client_reference_id":"%d","metadata":{"user_id":"%d","credits":"1500"}}}}`, u.ID, u.ID)
	body, sig := signedEvent(t, payload)

	res := h.do(t, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["received"])

	balance, err := h.credits.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	// redelivery is acknowledged without a second grant
	res = h.do(t, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, res.status)
	balance, err = h.credits.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	res = h.do(t, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": "t=1,v1=bad"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "invalid_signature", res.body["error"])

	unconfigured := newHarness(t, billing.Config{})
	res = unconfigured.do(t, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t, billing.Config{})
	admin := h.user(t, "root@example.com", models.ROLE_ADMIN)
	u := h.user(t, "ada@example.com", models.ROLE_USER)

	res := h.do(t, http.MethodGet, "/admin/api/stats", "", asUser(u))
	assert.Equal(t, http.StatusForbidden, res.status)

	res = h.do(t, http.MethodPost, fmt.Sprintf("/admin/api/users/%d/credits", u.ID), `{"delta":100,"note":"goodwill"}`, asUser(admin))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(100), res.body["balance"])

	res = h.do(t, http.MethodPost, fmt.Sprintf("/admin/api/users/%d/credits", u.ID), `{"delta":-500}`, asUser(admin))
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, float64(100), res.body["balance"])

	res = h.do(t, http.MethodPost, fmt.Sprintf("/admin/api/users/%d/credits", u.ID), `{"delta":0}`, asUser(admin))
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = h.do(t, http.MethodPost, "/admin/api/users/9999/credits", `{"delta":5}`, asUser(admin))
	assert.Equal(t, http.StatusNotFound, res.status)

	h.do(t, http.MethodPost, "/api/tools/contrast_checker", contrastBody, fromIP("9.9.9.9"))
	res = h.do(t, http.MethodGet, "/admin/api/trial-usage?ip=9.9.9.9", "", asUser(admin))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(1), res.body["used"])
	assert.Equal(t, float64(4), res.body["remaining"])

	res = h.do(t, http.MethodGet, "/admin/api/trial-usage", "", asUser(admin))
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = h.do(t, http.MethodGet, "/admin/api/stats", "", asUser(admin))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(2), res.body["total_users"])
	assert.Equal(t, float64(1), res.body["premium_users"])
	assert.Equal(t, float64(1), res.body["trial_uses_24h"])

	res = h.do(t, http.MethodGet, "/admin/api/users?q=ada", "", asUser(admin))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(1), res.body["total"])

	res = h.do(t, http.MethodPost, fmt.Sprintf("/admin/api/users/%d/status", admin.ID), `{"status":"disabled"}`, asUser(admin))
	assert.Equal(t, http.StatusBadRequest, res.status)
	res = h.do(t, http.MethodPost, fmt.Sprintf("/admin/api/users/%d/status", u.ID), `{"status":"disabled"}`, asUser(admin))
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, models.STATUS_DISABLED, res.body["status"])
}

func TestResolveUser(t *testing.T) {
	h := newHarness(t, billing.Config{})
	ac := NewAuthController(h.repos)

	first, err := ac.ResolveUser(goth.User{Provider: "github", UserID: "42", Email: "Ada@Example.com", NickName: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", first.Email)
	assert.Equal(t, "ada", first.Name)
	assert.Contains(t, first.AvatarURL, "gravatar.com")

	// same identity again, and a second provider with the same address
	again, err := ac.ResolveUser(goth.User{Provider: "github", UserID: "42"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	linked, err := ac.ResolveUser(goth.User{Provider: "google", UserID: "g-1", Email: "ada@example.com", Name: "Ada L"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, linked.ID)

	accounts, err := h.repos.ProviderAccount.ListByUserID(first.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	hidden, err := ac.ResolveUser(goth.User{Provider: "github", UserID: "77", NickName: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, "github_77@github.oauth.local", hidden.Email)
	assert.Empty(t, hidden.AvatarURL)

	hidden.Status = models.STATUS_DISABLED
	require.NoError(t, h.repos.User.Update(hidden))
	_, err = ac.ResolveUser(goth.User{Provider: "github", UserID: "77"})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	assert.Equal(t, now.UTC().Format(time.RFC3339), formatTimePtr(&now))
}
