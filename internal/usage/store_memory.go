package usage

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps one quota window per user for dev mode and tests.
type memoryStore struct {
	mu      sync.Mutex
	windows map[string]Usage
	clock   func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		windows: make(map[string]Usage),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// locked runs fn with the store lock held and the caller's current window,
// rolled forward when it expired. The window fn returns is stored.
func (s *memoryStore) locked(ctx context.Context, userID string, plan Plan, fn func(Usage) (Usage, error)) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	current, found := s.windows[userID]
	if !found {
		current = newUsage(plan, now)
	}
	roll(&current, plan, now)
	s.windows[userID] = current

	next, err := fn(current)
	if err != nil {
		return Usage{}, err
	}
	s.windows[userID] = next
	return next, nil
}

func (s *memoryStore) EnsurePeriod(ctx context.Context, userID string, plan Plan) (Usage, error) {
	return s.locked(ctx, userID, plan, func(u Usage) (Usage, error) { return u, nil })
}

func (s *memoryStore) Consume(ctx context.Context, userID string, plan Plan, n int) (Usage, error) {
	return s.locked(ctx, userID, plan, func(u Usage) (Usage, error) {
		switch {
		case n <= 0:
			return u, nil
		case exceeds(u, n):
			return Usage{}, ErrLimitReached
		}
		u.Used += n
		return u, nil
	})
}

func (s *memoryStore) Reset(ctx context.Context, userID string, plan Plan) (Usage, error) {
	return s.locked(ctx, userID, plan, func(Usage) (Usage, error) {
		return newUsage(plan, s.clock()), nil
	})
}

func (s *memoryStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.windows, userID)
	s.mu.Unlock()
	return nil
}
