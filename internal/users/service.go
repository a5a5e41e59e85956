package users

import (
	"context"
	"errors"
	"strings"

	"studyhub-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// UpsertFromAuth persists the user identity from OAuth so roles and billing have an owner row.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return errors.New("user id and email are required")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// RoleOf returns the user's role; unknown users are free.
func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	u, err := s.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return string(RoleFree), nil
	}
	if err != nil {
		return "", err
	}
	if u.Role == "" {
		return string(RoleFree), nil
	}
	return string(u.Role), nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, userID string, role Role) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	if _, ok := ParseRole(string(role)); !ok {
		return errors.New("invalid role")
	}
	if err := s.Repo.SetRole(ctx, userID, role); err != nil {
		return err
	}
	telemetry.Info("user.role_changed", map[string]any{"user_id": userID, "role": role})
	return nil
}

// RecordSubscription marks the user paid and stores the provider ids.
func (s *Service) RecordSubscription(ctx context.Context, userID, customerID, subscriptionID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	if err := s.Repo.SetBilling(ctx, userID, RolePaid, Billing{CustomerID: customerID, SubscriptionID: subscriptionID}); err != nil {
		return err
	}
	telemetry.Info("user.role_changed", map[string]any{"user_id": userID, "role": RolePaid, "subscription_id": subscriptionID})
	return nil
}

// FindBySubscriptionID resolves the owner of a subscription.
func (s *Service) FindBySubscriptionID(ctx context.Context, subscriptionID string) (User, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.FindBySubscriptionID(ctx, subscriptionID)
}

// Delete removes the user row.
func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.Repo.Delete(ctx, userID)
}
