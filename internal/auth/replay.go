package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	replayPrefix   = "oauth:state:"
	maxMemoryNonce = 10000
)

// ReplayGuard makes a state nonce single use.
type ReplayGuard interface {
	// Claim records id until ttl passes and reports whether it was unused.
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// RedisReplayGuard shares used nonces across instances.
type RedisReplayGuard struct {
	Client *redis.Client
}

func (g *RedisReplayGuard) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return g.Client.SetNX(ctx, replayPrefix+id, 1, ttl).Result()
}

// MemoryReplayGuard only sees nonces used on this instance.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	used map[string]time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{used: make(map[string]time.Time)}
}

func (g *MemoryReplayGuard) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.used) >= maxMemoryNonce {
		for k, exp := range g.used {
			if now.After(exp) {
				delete(g.used, k)
			}
		}
	}
	if exp, ok := g.used[id]; ok && now.Before(exp) {
		return false, nil
	}
	g.used[id] = now.Add(ttl)
	return true, nil
}

var (
	_ ReplayGuard = (*RedisReplayGuard)(nil)
	_ ReplayGuard = (*MemoryReplayGuard)(nil)
)
