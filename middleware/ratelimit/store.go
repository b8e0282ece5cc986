package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store counts requests per key in fixed windows.
type Store interface {
	// Increment records one request against key, opening a window of period
	// when none is active, and returns the window count and reset time.
	Increment(ctx context.Context, key string, period time.Duration) (count int, resetTime time.Time, err error)
	// Peek returns the current window without counting a request.
	Peek(ctx context.Context, key string) (count int, resetTime time.Time, err error)
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

type entry struct {
	count     int
	resetTime time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, period time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.data[key]; exists && now.Before(e.resetTime) {
		e.count++
		return e.count, e.resetTime, nil
	}

	e := &entry{count: 1, resetTime: now.Add(period)}
	s.data[key] = e
	return e.count, e.resetTime, nil
}

func (s *MemoryStore) Peek(_ context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.data[key]; exists && s.now().Before(e.resetTime) {
		return e.count, e.resetTime, nil
	}
	return 0, time.Time{}, nil
}

// Sweep drops closed windows.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.data {
		if !now.Before(e.resetTime) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

// RedisStore shares windows across instances. Each increment runs in one
// MULTI/EXEC: SET NX PX opens the window with its expiry, then INCR and PTTL
// read it back, so a counter is never created without an expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Increment(ctx context.Context, key string, period time.Duration) (int, time.Time, error) {
	k := r.prefix + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, period)
		incr = pipe.Incr(ctx, k)
		pttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment %s: %w", k, err)
	}

	count, ttl := incr.Val(), pttl.Val()
	// A counter written without expiry by something other than this store.
	if ttl < 0 {
		if err := r.client.PExpire(ctx, k, period).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis PEXPIRE %s: %w", k, err)
		}
		ttl = period
	}

	return int(count), time.Now().Add(ttl), nil
}

func (r *RedisStore) Peek(ctx context.Context, key string) (int, time.Time, error) {
	k := r.prefix + key

	count, err := r.client.Get(ctx, k).Int()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis GET %s: %w", k, err)
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis PTTL %s: %w", k, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return count, time.Now().Add(ttl), nil
}
