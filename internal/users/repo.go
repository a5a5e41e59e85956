package users

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

// Billing holds the payment provider ids recorded for a user.
type Billing struct {
	CustomerID     string
	SubscriptionID string
}

type Repo interface {
	// Upsert writes identity fields; role and billing ids are left untouched.
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	// SetRole creates the row when the user has not signed in yet.
	SetRole(ctx context.Context, userID string, role Role) error
	SetBilling(ctx context.Context, userID string, role Role, billing Billing) error
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (User, error)
	Delete(ctx context.Context, userID string) error
}
