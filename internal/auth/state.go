package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound means the state is unknown, expired or already used.
var ErrStateNotFound = errors.New("oauth state not found or expired")

// StateStore keeps the PKCE verifier for a pending login. Take is one-shot.
type StateStore interface {
	Save(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string) (string, error)
}

// RedisStateStore shares pending logins across API instances.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore stores keys as prefix+state with the given TTL.
func NewRedisStateStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: prefix, ttl: ttl}
}

// Save stores verifier under state.
func (s *RedisStateStore) Save(ctx context.Context, state, verifier string) error {
	if err := s.client.Set(ctx, s.prefix+state, verifier, s.ttl).Err(); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the verifier for state.
func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	verifier, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", fmt.Errorf("load oauth state: %w", err)
	}
	return verifier, nil
}

// MemoryStateStore is the single-instance fallback when Redis is not configured.
type MemoryStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]pendingState
}

type pendingState struct {
	verifier string
	expires  time.Time
}

// NewMemoryStateStore builds an in-process store.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{ttl: ttl, now: time.Now, pending: make(map[string]pendingState)}
}

// Save stores verifier under state and drops expired entries.
func (s *MemoryStateStore) Save(_ context.Context, state, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, p := range s.pending {
		if now.After(p.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingState{verifier: verifier, expires: now.Add(s.ttl)}
	return nil
}

// Take returns and forgets the verifier for state.
func (s *MemoryStateStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	delete(s.pending, state)
	if !ok || s.now().After(p.expires) {
		return "", ErrStateNotFound
	}
	return p.verifier, nil
}
