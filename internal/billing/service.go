package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/users"
)

// Accounts stores roles and billing ids; users.Service satisfies it.
type Accounts interface {
	RoleOf(ctx context.Context, userID string) (string, error)
	SetRole(ctx context.Context, userID string, role users.Role) error
	RecordSubscription(ctx context.Context, userID, customerID, subscriptionID string) error
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (users.User, error)
}

type Service struct {
	Accounts      Accounts
	Provider      Provider
	Dedupe        Deduper
	WebhookSecret string
	SecretKey     string
}

// WebhookResult describes a verified and handled event.
type WebhookResult struct {
	EventID   string
	Type      string
	Duplicate bool
}

// TestResult is the outcome of a connectivity check.
type TestResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	KeyPrefix string `json:"keyPrefix"`
	Error     string `json:"error,omitempty"`
}

// HandleWebhook verifies the signature, then applies the event's side effect.
// Nothing is mutated when verification fails.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if strings.TrimSpace(s.WebhookSecret) == "" {
		return WebhookResult{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.IncWebhookEvent("unknown", "invalid_signature")
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	res := WebhookResult{EventID: event.ID, Type: string(event.Type)}

	recorded := false
	if s.Dedupe != nil && event.ID != "" {
		first, err := s.Dedupe.FirstSeen(ctx, event.ID)
		switch {
		case err != nil:
			telemetry.Warn("billing.dedupe_failed", map[string]any{"event_id": event.ID, "error": err.Error()})
		case !first:
			metrics.IncWebhookEvent(res.Type, "duplicate")
			telemetry.Info("billing.webhook_duplicate", map[string]any{"event_id": event.ID, "type": res.Type})
			res.Duplicate = true
			return res, nil
		default:
			recorded = true
		}
	}

	if err := s.apply(ctx, event); err != nil {
		if recorded {
			if ferr := s.Dedupe.Forget(context.WithoutCancel(ctx), event.ID); ferr != nil {
				telemetry.Warn("billing.dedupe_forget_failed", map[string]any{"event_id": event.ID, "error": ferr.Error()})
			}
		}
		metrics.IncWebhookEvent(res.Type, "error")
		telemetry.Error("billing.webhook_failed", map[string]any{
			"event_id": event.ID,
			"type":     res.Type,
			"error":    err.Error(),
		})
		return res, err
	}
	metrics.IncWebhookEvent(res.Type, "ok")
	return res, nil
}

func (s *Service) apply(ctx context.Context, event stripe.Event) error {
	fields := map[string]any{"event_id": event.ID, "type": string(event.Type)}
	switch string(event.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: decode checkout session: %v", ErrMissingField, err)
		}
		var missing []string
		if strings.TrimSpace(sess.ClientReferenceID) == "" {
			missing = append(missing, "client_reference_id")
		}
		if sess.Customer == nil || sess.Customer.ID == "" {
			missing = append(missing, "customer")
		}
		if sess.Subscription == nil || sess.Subscription.ID == "" {
			missing = append(missing, "subscription")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
		}
		if err := s.Accounts.RecordSubscription(ctx, sess.ClientReferenceID, sess.Customer.ID, sess.Subscription.ID); err != nil {
			return fmt.Errorf("record subscription: %w", err)
		}
		fields["user_id"] = sess.ClientReferenceID
		telemetry.Info("billing.checkout_completed", fields)

	case EventSubscriptionCreated:
		sub, err := decodeSubscription(event)
		if err != nil {
			return err
		}
		userID := metadataUserID(sub.Metadata)
		if userID == "" {
			telemetry.Warn("billing.subscription_without_user", fields)
			return nil
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		if err := s.Accounts.RecordSubscription(ctx, userID, customerID, sub.ID); err != nil {
			return fmt.Errorf("record subscription: %w", err)
		}
		fields["user_id"] = userID
		telemetry.Info("billing.subscription_created", fields)

	case EventSubscriptionDeleted:
		sub, err := decodeSubscription(event)
		if err != nil {
			return err
		}
		userID, err := s.ownerOf(ctx, sub)
		if err != nil {
			return err
		}
		if userID == "" {
			telemetry.Warn("billing.subscription_without_user", fields)
			return nil
		}
		if err := s.Accounts.SetRole(ctx, userID, users.RoleFree); err != nil {
			return fmt.Errorf("downgrade user: %w", err)
		}
		fields["user_id"] = userID
		telemetry.Info("billing.subscription_deleted", fields)

	case EventSubscriptionUpdated, EventSubscriptionPendingApplied, EventSubscriptionPendingExpired, EventSubscriptionTrialWillEnd:
		telemetry.Info("billing.subscription_event", fields)

	default:
		telemetry.Info("billing.webhook_ignored", fields)
	}
	return nil
}

func decodeSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: decode subscription: %v", ErrMissingField, err)
	}
	return &sub, nil
}

// ownerOf resolves a subscription's user from metadata, then from stored ids.
func (s *Service) ownerOf(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if id := metadataUserID(sub.Metadata); id != "" {
		return id, nil
	}
	u, err := s.Accounts.FindBySubscriptionID(ctx, sub.ID)
	if errors.Is(err, users.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find subscription owner: %w", err)
	}
	return u.ID, nil
}

// Cancel schedules the subscription to end at the current period end.
func (s *Service) Cancel(ctx context.Context, callerID, subscriptionID string) (SubscriptionView, error) {
	return s.setCancel(ctx, callerID, subscriptionID, true)
}

// Reactivate undoes a scheduled cancellation.
func (s *Service) Reactivate(ctx context.Context, callerID, subscriptionID string) (SubscriptionView, error) {
	return s.setCancel(ctx, callerID, subscriptionID, false)
}

func (s *Service) setCancel(ctx context.Context, callerID, subscriptionID string, cancel bool) (SubscriptionView, error) {
	if _, _, err := s.authorized(ctx, callerID, subscriptionID); err != nil {
		return SubscriptionView{}, err
	}
	sub, err := s.Provider.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel)
	if err != nil {
		return SubscriptionView{}, fmt.Errorf("update subscription: %w", err)
	}
	telemetry.Info("billing.cancel_at_period_end", map[string]any{
		"user_id":         callerID,
		"subscription_id": subscriptionID,
		"cancel":          cancel,
	})
	return viewOf(sub), nil
}

// Sync sets the owner's role from the subscription's current status.
func (s *Service) Sync(ctx context.Context, callerID, subscriptionID string) (SubscriptionView, users.Role, error) {
	sub, owner, err := s.authorized(ctx, callerID, subscriptionID)
	if err != nil {
		return SubscriptionView{}, "", err
	}
	role := users.RoleFree
	if paidStatus(sub.Status) {
		role = users.RolePaid
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		err = s.Accounts.RecordSubscription(ctx, owner, customerID, sub.ID)
	} else {
		err = s.Accounts.SetRole(ctx, owner, role)
	}
	if err != nil {
		return SubscriptionView{}, "", fmt.Errorf("sync role: %w", err)
	}
	telemetry.Info("billing.synced", map[string]any{
		"user_id":         owner,
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"role":            role,
	})
	return viewOf(sub), role, nil
}

// Test checks that the secret key works.
func (s *Service) Test(ctx context.Context) (TestResult, error) {
	res := TestResult{KeyPrefix: keyPrefix(s.SecretKey)}
	if s.Provider == nil {
		res.Status = "error"
		res.Message = "Stripe secret key is not configured"
		res.Error = res.Message
		return res, ErrNotConfigured
	}
	if err := s.Provider.CheckConnection(ctx); err != nil {
		res.Status = "error"
		res.Message = "Stripe connection failed: " + err.Error()
		res.Error = res.Message
		return res, err
	}
	res.Status = "success"
	res.Message = "Stripe connection successful"
	return res, nil
}

// authorized fetches the subscription and checks the caller owns it or is an admin.
func (s *Service) authorized(ctx context.Context, callerID, subscriptionID string) (*stripe.Subscription, string, error) {
	if s.Provider == nil {
		return nil, "", ErrNotConfigured
	}
	sub, err := s.Provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, "", fmt.Errorf("get subscription: %w", err)
	}
	owner, err := s.ownerOf(ctx, sub)
	if err != nil {
		return nil, "", err
	}
	if owner != "" && owner == callerID {
		return sub, owner, nil
	}
	role, err := s.Accounts.RoleOf(ctx, callerID)
	if err != nil {
		return nil, "", fmt.Errorf("caller role: %w", err)
	}
	if role == string(users.RoleAdmin) && owner != "" {
		return sub, owner, nil
	}
	return nil, "", ErrForbidden
}

func keyPrefix(key string) string {
	key = strings.TrimSpace(key)
	if len(key) > 7 {
		return key[:7]
	}
	return key
}
