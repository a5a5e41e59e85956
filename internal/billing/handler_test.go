package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"studyhub-backend/internal/users"
)

const testSecret = "whsec_test_secret"

type fixture struct {
	users  *users.Service
	svc    *Service
	router *gin.Engine
}

func newFixture(t *testing.T, provider Provider) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{users: users.NewService(users.NewMemoryRepo())}
	f.svc = &Service{
		Accounts:      f.users,
		Provider:      provider,
		Dedupe:        NewMemoryDeduper(),
		WebhookSecret: testSecret,
		SecretKey:     "sk_test_abcdef123",
	}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("userId", id)
		}
		c.Next()
	})
	h := NewHandler(f.svc)
	h.RegisterWebhookRoutes(r.Group("/api/v1"))
	h.RegisterRoutes(r.Group("/api/v1"))
	f.router = r
	return f
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func (f *fixture) postWebhook(payload []byte, secret string) *httptest.ResponseRecorder {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func checkoutObject(userID string) map[string]any {
	return map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": userID,
		"customer":            "cus_1",
		"subscription":        "sub_1",
	}
}

func TestWebhookInvalidSignatureHasNoSideEffect(t *testing.T) {
	f := newFixture(t, nil)
	payload := eventPayload(t, "evt_1", EventCheckoutCompleted, checkoutObject("u1"))

	rec := f.postWebhook(payload, "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := f.users.GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestWebhookCheckoutCompletedUpgradesUser(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.postWebhook(eventPayload(t, "evt_2", EventCheckoutCompleted, checkoutObject("u1")), testSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"received":true`)

	u, err := f.users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, users.RolePaid, u.Role)
	assert.Equal(t, "cus_1", u.StripeCustomerID)
	assert.Equal(t, "sub_1", u.StripeSubscriptionID)
}

func TestWebhookCheckoutMissingFields(t *testing.T) {
	f := newFixture(t, nil)
	obj := checkoutObject("u1")
	delete(obj, "subscription")

	rec := f.postWebhook(eventPayload(t, "evt_3", EventCheckoutCompleted, obj), testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "subscription")
}

func TestWebhookSubscriptionDeletedDowngrades(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.users.RecordSubscription(context.Background(), "u1", "cus_1", "sub_1"))

	rec := f.postWebhook(eventPayload(t, "evt_4", EventSubscriptionDeleted, map[string]any{
		"id": "sub_1", "object": "subscription", "status": "canceled",
	}), testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	role, err := f.users.RoleOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "free", role)
}

func TestWebhookSubscriptionCreatedUsesMetadata(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.postWebhook(eventPayload(t, "evt_5", EventSubscriptionCreated, map[string]any{
		"id": "sub_9", "object": "subscription", "status": "active", "customer": "cus_9",
		"metadata": map[string]string{"user_id": "u9"},
	}), testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	role, err := f.users.RoleOf(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, "paid", role)
}

func TestWebhookUnknownAndLoggedOnlyEventsAck(t *testing.T) {
	f := newFixture(t, nil)
	for i, typ := range []string{"invoice.paid", EventSubscriptionUpdated, EventSubscriptionTrialWillEnd} {
		rec := f.postWebhook(eventPayload(t, "evt_log_"+string(rune('a'+i)), typ, map[string]any{"id": "x"}), testSecret)
		assert.Equal(t, http.StatusOK, rec.Code, typ)
	}
}

type failingAccounts struct {
	*users.Service
	calls int
}

func (a *failingAccounts) RecordSubscription(ctx context.Context, userID, customerID, subscriptionID string) error {
	a.calls++
	if a.calls == 1 {
		return errors.New("db down")
	}
	return a.Service.RecordSubscription(ctx, userID, customerID, subscriptionID)
}

func TestWebhookFailureAllowsRedelivery(t *testing.T) {
	f := newFixture(t, nil)
	accounts := &failingAccounts{Service: f.users}
	f.svc.Accounts = accounts
	payload := eventPayload(t, "evt_6", EventCheckoutCompleted, checkoutObject("u1"))

	rec := f.postWebhook(payload, testSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.postWebhook(payload, testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate":false`)

	rec = f.postWebhook(payload, testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate":true`)
	assert.Equal(t, 2, accounts.calls)
}

func TestRedisDeduperFailsOpen(t *testing.T) {
	f := newFixture(t, nil)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	f.svc.Dedupe = &RedisDeduper{Client: client}

	rec := f.postWebhook(eventPayload(t, "evt_7", EventCheckoutCompleted, checkoutObject("u1")), testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	role, err := f.users.RoleOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "paid", role)
}

type fakeProvider struct {
	subs    map[string]*stripe.Subscription
	connErr error
}

func (p *fakeProvider) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*stripe.Subscription, error) {
	sub, ok := p.subs[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such subscription"}
	}
	sub.CancelAtPeriodEnd = cancel
	return sub, nil
}

func (p *fakeProvider) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	sub, ok := p.subs[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such subscription"}
	}
	return sub, nil
}

func (p *fakeProvider) CheckConnection(ctx context.Context) error { return p.connErr }

func postAs(r http.Handler, userID, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubscriptionOperations(t *testing.T) {
	provider := &fakeProvider{subs: map[string]*stripe.Subscription{
		"sub_1": {ID: "sub_1", Status: stripe.SubscriptionStatusActive, Metadata: map[string]string{"userId": "u1"}, Customer: &stripe.Customer{ID: "cus_1"}},
	}}
	f := newFixture(t, provider)

	rec := postAs(f.router, "u1", "/api/v1/stripe/cancel", map[string]string{"subscriptionId": "sub_1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cancelAtPeriodEnd":true`)

	rec = postAs(f.router, "u1", "/api/v1/stripe/reactivate", map[string]string{"subscriptionId": "sub_1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancelAtPeriodEnd":false`)

	rec = postAs(f.router, "u1", "/api/v1/stripe/sync", map[string]string{"subscriptionId": "sub_1"})
	require.Equal(t, http.StatusOK, rec.Code)
	role, _ := f.users.RoleOf(context.Background(), "u1")
	assert.Equal(t, "paid", role)

	provider.subs["sub_1"].Status = stripe.SubscriptionStatusPastDue
	rec = postAs(f.router, "u1", "/api/v1/stripe/sync", map[string]string{"subscriptionId": "sub_1"})
	require.Equal(t, http.StatusOK, rec.Code)
	role, _ = f.users.RoleOf(context.Background(), "u1")
	assert.Equal(t, "free", role)

	rec = postAs(f.router, "u2", "/api/v1/stripe/cancel", map[string]string{"subscriptionId": "sub_1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postAs(f.router, "u1", "/api/v1/stripe/cancel", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAs(f.router, "u1", "/api/v1/stripe/cancel", map[string]string{"subscriptionId": "sub_missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeTestEndpoint(t *testing.T) {
	f := newFixture(t, &fakeProvider{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stripe/test", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"Stripe connection successful","keyPrefix":"sk_test"}`, rec.Body.String())

	f = newFixture(t, &fakeProvider{connErr: errors.New("invalid api key")})
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stripe/test", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var failed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "Stripe connection failed: invalid api key", failed["error"])
	assert.Equal(t, "error", failed["status"])
}
