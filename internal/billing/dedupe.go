package billing

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupeTTL    = 72 * time.Hour
	dedupePrefix = "stripe:event:"
)

// Deduper remembers processed webhook event ids.
type Deduper interface {
	// FirstSeen records id and reports whether it was new.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	// Forget drops id so a redelivery is processed again.
	Forget(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisDeduper connects to the given redis URL.
func NewRedisDeduper(url string) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisDeduper{Client: redis.NewClient(opts), TTL: dedupeTTL}, nil
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = dedupeTTL
	}
	return d.Client.SetNX(ctx, dedupePrefix+eventID, time.Now().UTC().Unix(), ttl).Result()
}

func (d *RedisDeduper) Forget(ctx context.Context, eventID string) error {
	return d.Client.Del(ctx, dedupePrefix+eventID).Err()
}

// MemoryDeduper is a process-local Deduper for tests and single-instance dev.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Forget(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}

var (
	_ Deduper = (*RedisDeduper)(nil)
	_ Deduper = (*MemoryDeduper)(nil)
)
