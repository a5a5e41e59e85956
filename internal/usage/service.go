package usage

import (
	"context"
	"strings"

	"studyhub-backend/internal/shared/telemetry"
)

type store interface {
	EnsurePeriod(ctx context.Context, userID string, plan Plan) (Usage, error)
	Consume(ctx context.Context, userID string, plan Plan, n int) (Usage, error)
	Reset(ctx context.Context, userID string, plan Plan) (Usage, error)
	Delete(ctx context.Context, userID string) error
}

// RoleLookup resolves a user's role (free, paid or admin).
type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// Service manages usage data via an underlying store.
type Service struct {
	store     store
	Roles     RoleLookup
	FreeLimit int
	PaidLimit int
}

// NewService constructs a Service with in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore(), FreeLimit: DefaultFreeLimit, PaidLimit: DefaultPaidLimit}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore, FreeLimit: DefaultFreeLimit, PaidLimit: DefaultPaidLimit}
}

// PlanFor maps a role to its quota. Admins are unlimited.
func (s *Service) PlanFor(role string) Plan {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin":
		return Plan{Name: "admin", Limit: -1}
	case "paid":
		return Plan{Name: "paid", Limit: s.PaidLimit}
	default:
		return Plan{Name: "free", Limit: s.FreeLimit}
	}
}

func (s *Service) plan(ctx context.Context, userID string) Plan {
	if s.Roles == nil {
		return s.PlanFor("free")
	}
	role, err := s.Roles.RoleOf(ctx, userID)
	if err != nil {
		telemetry.Warn("usage.role_lookup_failed", map[string]any{"user_id": userID, "error": err})
		return s.PlanFor("free")
	}
	return s.PlanFor(role)
}

// EnsurePeriod resets usage if the period has expired.
func (s *Service) EnsurePeriod(ctx context.Context, userID string) (Usage, error) {
	return s.store.EnsurePeriod(ctx, userID, s.plan(ctx, userID))
}

// CanConsume reports whether the user can consume n units.
func (s *Service) CanConsume(ctx context.Context, userID string, n int) (bool, Usage, error) {
	u, err := s.EnsurePeriod(ctx, userID)
	if err != nil {
		return false, Usage{}, err
	}
	if n <= 0 {
		return true, u, nil
	}
	return !exceeds(u, n), u, nil
}

// Consume increments usage by n if within limit.
func (s *Service) Consume(ctx context.Context, userID string, n int) (Usage, error) {
	return s.store.Consume(ctx, userID, s.plan(ctx, userID), n)
}

// Reset sets usage to zero and resets the window.
func (s *Service) Reset(ctx context.Context, userID string) (Usage, error) {
	return s.store.Reset(ctx, userID, s.plan(ctx, userID))
}

// Delete drops a user's usage row.
func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}
