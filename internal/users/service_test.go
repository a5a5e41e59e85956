package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestUpsertKeepsRoleAndBilling(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if err := svc.RecordSubscription(ctx, "u1", "cus_1", "sub_1"); err != nil {
		t.Fatalf("RecordSubscription: %v", err)
	}
	if err := svc.UpsertFromAuth(ctx, User{ID: "u1", Email: "a@example.com", FullName: "A"}); err != nil {
		t.Fatalf("UpsertFromAuth: %v", err)
	}

	u, err := svc.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.Role != RolePaid || u.StripeSubscriptionID != "sub_1" || u.Email != "a@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}

	found, err := svc.FindBySubscriptionID(ctx, "sub_1")
	if err != nil || found.ID != "u1" {
		t.Fatalf("FindBySubscriptionID: %+v %v", found, err)
	}
}

func TestRoleOfDefaultsToFree(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	role, err := svc.RoleOf(context.Background(), "nobody")
	if err != nil || role != "free" {
		t.Fatalf("expected free, got %q %v", role, err)
	}
	if err := svc.SetRole(context.Background(), "nobody", Role("owner")); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestMeFallsBackToClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "u2")
		c.Set("userEmail", "b@example.com")
		c.Next()
	})
	NewHandler(NewService(NewMemoryRepo())).RegisterRoutes(r.Group("/api/v1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["email"] != "b@example.com" || body["role"] != "free" {
		t.Fatalf("unexpected body: %v", body)
	}
}
