package push

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registrar keeps the latest device token each user registered. Token
// returns "" when the user has none, which is not an error.
type Registrar interface {
	Register(ctx context.Context, uid, token string) error
	Token(ctx context.Context, uid string) (string, error)
}

const tokenKeyPrefix = "push:token:"

// RedisRegistrar stores tokens in redis with a TTL.
type RedisRegistrar struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistrar constructs a redis backed registrar.
func NewRedisRegistrar(client *redis.Client, ttl time.Duration) *RedisRegistrar {
	return &RedisRegistrar{client: client, ttl: ttl}
}

func (r *RedisRegistrar) Register(ctx context.Context, uid, token string) error {
	if err := validateRegistration(uid, token); err != nil {
		return err
	}
	return r.client.Set(ctx, tokenKeyPrefix+uid, strings.TrimSpace(token), r.ttl).Err()
}

func (r *RedisRegistrar) Token(ctx context.Context, uid string) (string, error) {
	token, err := r.client.Get(ctx, tokenKeyPrefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

// MemoryRegistrar is the single instance registrar.
type MemoryRegistrar struct {
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]registeredToken
}

type registeredToken struct {
	token   string
	expires time.Time
}

// NewMemoryRegistrar constructs an empty registrar. A zero ttl keeps
// tokens forever.
func NewMemoryRegistrar(ttl time.Duration) *MemoryRegistrar {
	return &MemoryRegistrar{ttl: ttl, now: time.Now, tokens: make(map[string]registeredToken)}
}

func (r *MemoryRegistrar) Register(_ context.Context, uid, token string) error {
	if err := validateRegistration(uid, token); err != nil {
		return err
	}
	entry := registeredToken{token: strings.TrimSpace(token)}
	if r.ttl > 0 {
		entry.expires = r.now().Add(r.ttl)
	}
	r.mu.Lock()
	r.tokens[uid] = entry
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistrar) Token(_ context.Context, uid string) (string, error) {
	r.mu.RLock()
	entry, ok := r.tokens[uid]
	r.mu.RUnlock()
	if !ok || (!entry.expires.IsZero() && r.now().After(entry.expires)) {
		return "", nil
	}
	return entry.token, nil
}

func validateRegistration(uid, token string) error {
	if uid == "" {
		return errors.New("push: empty uid")
	}
	if strings.TrimSpace(token) == "" {
		return ErrInvalidToken
	}
	return nil
}
