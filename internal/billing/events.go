package billing

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
)

var (
	// ErrMissingField marks a well-signed event that lacks data we need.
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("billing not configured")
	ErrForbidden        = errors.New("subscription belongs to another user")
)

const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventSubscriptionCreated        = "customer.subscription.created"
	EventSubscriptionUpdated        = "customer.subscription.updated"
	EventSubscriptionDeleted        = "customer.subscription.deleted"
	EventSubscriptionPendingApplied = "customer.subscription.pending_update_applied"
	EventSubscriptionPendingExpired = "customer.subscription.pending_update_expired"
	EventSubscriptionTrialWillEnd   = "customer.subscription.trial_will_end"
)

// metadataUserID reads the owner id a checkout put into metadata.
func metadataUserID(md map[string]string) string {
	for _, key := range []string{"userId", "user_id"} {
		if v := strings.TrimSpace(md[key]); v != "" {
			return v
		}
	}
	return ""
}

// paidStatus reports whether a subscription status grants paid access.
func paidStatus(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}

// SubscriptionView is the subset of a subscription returned to clients.
type SubscriptionView struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  int64  `json:"currentPeriodEnd"`
	CustomerID        string `json:"customerId,omitempty"`
}

func viewOf(sub *stripe.Subscription) SubscriptionView {
	v := SubscriptionView{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
	}
	if sub.Customer != nil {
		v.CustomerID = sub.Customer.ID
	}
	return v
}
