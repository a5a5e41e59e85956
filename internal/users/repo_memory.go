package users

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is the in-process user store used when DATABASE_URL is unset.
type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]User
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:  make(map[string]User),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	return r.write(ctx, user.ID, func(stored *User, isNew bool) {
		if isNew {
			user.Role = RoleFree
			user.CreatedAt = stored.CreatedAt
		} else {
			// identity only; keep what billing and admins set
			user.Role = stored.Role
			user.CreatedAt = stored.CreatedAt
			user.StripeCustomerID = stored.StripeCustomerID
			user.StripeSubscriptionID = stored.StripeSubscriptionID
		}
		*stored = user
	})
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[userID]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) SetRole(ctx context.Context, userID string, role Role) error {
	return r.write(ctx, userID, func(u *User, _ bool) { u.Role = role })
}

func (r *MemoryRepo) SetBilling(ctx context.Context, userID string, role Role, billing Billing) error {
	return r.write(ctx, userID, func(u *User, _ bool) {
		u.Role = role
		u.StripeCustomerID = billing.CustomerID
		u.StripeSubscriptionID = billing.SubscriptionID
	})
}

func (r *MemoryRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) (User, error) {
	if subscriptionID == "" {
		return User{}, ErrNotFound
	}
	return r.find(ctx, func(u User) bool { return u.StripeSubscriptionID == subscriptionID })
}

func (r *MemoryRepo) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.byID, userID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepo) find(ctx context.Context, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// write applies fn to the stored user, creating a free-tier row first when
// none exists, and stamps UpdatedAt.
func (r *MemoryRepo) write(ctx context.Context, userID string, fn func(u *User, isNew bool)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	u, found := r.byID[userID]
	if !found {
		u = User{ID: userID, Role: RoleFree, CreatedAt: now}
	}
	fn(&u, !found)
	u.UpdatedAt = now
	r.byID[userID] = u
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
